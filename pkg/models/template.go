package models

import "encoding/json"

// TemplateData is one item of the business account's message_templates list.
type TemplateData struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Language   LanguageCode        `json:"language"`
	Status     string              `json:"status"`
	Category   string              `json:"category"`
	Components []TemplateComponent `json:"components,omitempty"`
	Example    json.RawMessage     `json:"example,omitempty"`
}

// LanguageCode tolerates both the plain-string form ("en_US") and the
// object form ({"code":"en_US"}) the API has used across versions.
type LanguageCode string

func (l *LanguageCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = LanguageCode(s)
		return nil
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*l = LanguageCode(obj.Code)
	return nil
}

func (l LanguageCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// TemplateComponent is one entry of a template's components schema as
// returned by the template management API (HEADER/BODY/FOOTER/BUTTONS).
type TemplateComponent struct {
	Type    string            `json:"type"`
	Format  string            `json:"format,omitempty"`
	Text    string            `json:"text,omitempty"`
	Example *ComponentExample `json:"example,omitempty"`
	Buttons []TemplateButton  `json:"buttons,omitempty"`
}

type ComponentExample struct {
	HeaderHandle        []string     `json:"header_handle,omitempty"`
	HeaderText          []string     `json:"header_text,omitempty"`
	BodyText            [][]string   `json:"body_text,omitempty"`
	BodyTextNamedParams []NamedParam `json:"body_text_named_params,omitempty"`
}

type NamedParam struct {
	ParamName string `json:"param_name"`
	Example   string `json:"example"`
}

type TemplateButton struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	URL     string   `json:"url,omitempty"`
	Example []string `json:"example,omitempty"`
}

// --- Outbound template parameter shapes ---

// ComponentParams is one element of the "components" parameter array sent
// alongside a template message.
type ComponentParams struct {
	Type       string       `json:"type"`
	SubType    string       `json:"sub_type,omitempty"`
	Index      string       `json:"index,omitempty"`
	Parameters []ParamValue `json:"parameters"`
}

type ParamValue struct {
	Type          string     `json:"type"`
	ParameterName string     `json:"parameter_name,omitempty"`
	Text          string     `json:"text,omitempty"`
	Image         *MediaLink `json:"image,omitempty"`
	Video         *MediaLink `json:"video,omitempty"`
	Document      *MediaLink `json:"document,omitempty"`
}

type MediaLink struct {
	Link string `json:"link"`
}
