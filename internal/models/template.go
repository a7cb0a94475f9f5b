package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	wire "whatsapp-hub/pkg/models"
)

const (
	TemplateStatusApproved = "APPROVED"
	TemplateStatusPending  = "PENDING"
	TemplateStatusRejected = "REJECTED"
	TemplateStatusPaused   = "PAUSED"
	TemplateStatusDisabled = "DISABLED"
)

const (
	TemplateCategoryAuthentication = "AUTHENTICATION"
	TemplateCategoryMarketing      = "MARKETING"
	TemplateCategoryUtility        = "UTILITY"
)

var positionalParamPattern = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Template is a reusable outbound message format registered with the
// official API. Records are created and updated only by importing the
// provider's template list; unique per (phone_number, name, language).
type Template struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	PhoneNumberID uint         `gorm:"not null;uniqueIndex:idx_templates_pn_name_lang" json:"phone_number_id"`
	PhoneNumber   *PhoneNumber `gorm:"foreignKey:PhoneNumberID" json:"-"`

	TemplateID string `gorm:"type:varchar(255)" json:"template_id"`
	Name       string `gorm:"type:varchar(255);uniqueIndex:idx_templates_pn_name_lang" json:"name"`
	Language   string `gorm:"type:varchar(10);uniqueIndex:idx_templates_pn_name_lang" json:"language"`
	Status     string `gorm:"type:varchar(20);default:PENDING" json:"status"`
	Category   string `gorm:"type:varchar(20);default:UTILITY" json:"category"`

	HeaderType string `gorm:"type:varchar(20)" json:"header_type"`
	HeaderText string `gorm:"type:varchar(255)" json:"header_text"`
	BodyText   string `gorm:"type:text" json:"body_text"`
	FooterText string `gorm:"type:varchar(255)" json:"footer_text"`

	// Components is the provider's components schema, stored verbatim as
	// JSON. Buttons and Examples are extracted views of it.
	Components string `gorm:"type:text" json:"components"`
	Buttons    string `gorm:"type:text" json:"buttons"`
	Examples   string `gorm:"type:text" json:"examples"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Template) TableName() string {
	return "templates"
}

func (t *Template) IsApproved() bool {
	return t.Status == TemplateStatusApproved
}

// ApplyAPIResponse maps a template-list item onto the record, extracting
// header/body/footer text and buttons out of the components schema.
func (t *Template) ApplyAPIResponse(data wire.TemplateData) error {
	t.TemplateID = data.ID
	t.Name = data.Name
	if data.Language != "" {
		t.Language = string(data.Language)
	}
	if data.Status != "" {
		t.Status = strings.ToUpper(data.Status)
	}
	if data.Category != "" {
		t.Category = strings.ToUpper(data.Category)
	}

	if len(data.Components) > 0 {
		raw, err := json.Marshal(data.Components)
		if err != nil {
			return err
		}
		t.Components = string(raw)

		for _, component := range data.Components {
			switch strings.ToLower(component.Type) {
			case "header":
				t.HeaderType = component.Format
				if t.HeaderType == "" {
					t.HeaderType = "TEXT"
				}
				t.HeaderText = component.Text
			case "body":
				t.BodyText = component.Text
			case "footer":
				t.FooterText = component.Text
			case "buttons":
				if len(component.Buttons) > 0 {
					buttons, err := json.Marshal(component.Buttons)
					if err != nil {
						return err
					}
					t.Buttons = string(buttons)
				}
			}
		}
	}

	if len(data.Example) > 0 {
		t.Examples = string(data.Example)
	}
	return nil
}

// ParsedComponents decodes the stored components schema.
func (t *Template) ParsedComponents() []wire.TemplateComponent {
	if t.Components == "" {
		return nil
	}
	var components []wire.TemplateComponent
	if err := json.Unmarshal([]byte(t.Components), &components); err != nil {
		return nil
	}
	return components
}

// BodyVariable is a named or positional body placeholder.
type BodyVariable struct {
	Name    string `json:"name"`
	Example string `json:"example"`
}

// ButtonVariable is a URL-button placeholder, keyed for the variables map
// as button_<button_index>_param_<param_index>.
type ButtonVariable struct {
	ButtonIndex int    `json:"button_index"`
	ParamIndex  int    `json:"param_index"`
	Example     string `json:"example"`
}

func (v ButtonVariable) Key() string {
	return fmt.Sprintf("button_%d_param_%d", v.ButtonIndex, v.ParamIndex)
}

// RequiredVariables lists every placeholder the template expects a caller
// to supply when sending.
type RequiredVariables struct {
	Body    []BodyVariable   `json:"body"`
	Buttons []ButtonVariable `json:"buttons"`
}

// GetRequiredVariables walks the components schema and collects body
// placeholders (named or positional) and URL-button placeholders.
func (t *Template) GetRequiredVariables() RequiredVariables {
	required := RequiredVariables{
		Body:    []BodyVariable{},
		Buttons: []ButtonVariable{},
	}

	for _, component := range t.ParsedComponents() {
		switch strings.ToLower(component.Type) {
		case "body":
			if component.Example != nil && len(component.Example.BodyTextNamedParams) > 0 {
				for _, param := range component.Example.BodyTextNamedParams {
					required.Body = append(required.Body, BodyVariable{
						Name:    param.ParamName,
						Example: param.Example,
					})
				}
				continue
			}
			for _, match := range positionalParamPattern.FindAllStringSubmatch(component.Text, -1) {
				required.Body = append(required.Body, BodyVariable{Name: match[1]})
			}
		case "buttons":
			for i, button := range component.Buttons {
				if !strings.EqualFold(button.Type, "URL") {
					continue
				}
				if !strings.Contains(button.URL, "{{") {
					continue
				}
				variable := ButtonVariable{ButtonIndex: i, ParamIndex: 1}
				if len(button.Example) > 0 {
					variable.Example = button.Example[0]
				}
				required.Buttons = append(required.Buttons, variable)
			}
		}
	}
	return required
}

// ValidateVariables checks the supplied variables against the template's
// placeholders and returns the missing keys.
func (t *Template) ValidateVariables(variables map[string]string) (bool, []string) {
	var missing []string
	required := t.GetRequiredVariables()
	for _, v := range required.Body {
		if _, ok := variables[v.Name]; !ok {
			missing = append(missing, v.Name)
		}
	}
	for _, v := range required.Buttons {
		if _, ok := variables[v.Key()]; !ok {
			missing = append(missing, v.Key())
		}
	}
	return len(missing) == 0, missing
}

// BuildComponents produces the provider-facing components parameter array
// for a send, merging the schema with caller-supplied variables: media
// header parameters (variables["header"] as link, falling back to the
// schema example), named and positional body text parameters, and URL
// button parameters.
func (t *Template) BuildComponents(variables map[string]string) ([]wire.ComponentParams, error) {
	if ok, missing := t.ValidateVariables(variables); !ok {
		return nil, fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	var components []wire.ComponentParams
	for _, component := range t.ParsedComponents() {
		switch strings.ToLower(component.Type) {
		case "header":
			format := strings.ToUpper(component.Format)
			if format == "" || format == "TEXT" {
				continue
			}
			link := variables["header"]
			if link == "" && component.Example != nil && len(component.Example.HeaderHandle) > 0 {
				link = component.Example.HeaderHandle[0]
			}
			if link == "" {
				continue
			}
			param := wire.ParamValue{Type: strings.ToLower(format)}
			media := &wire.MediaLink{Link: link}
			switch format {
			case "IMAGE":
				param.Image = media
			case "VIDEO":
				param.Video = media
			case "DOCUMENT":
				param.Document = media
			default:
				continue
			}
			components = append(components, wire.ComponentParams{
				Type:       "header",
				Parameters: []wire.ParamValue{param},
			})

		case "body":
			var params []wire.ParamValue
			if component.Example != nil && len(component.Example.BodyTextNamedParams) > 0 {
				for _, p := range component.Example.BodyTextNamedParams {
					params = append(params, wire.ParamValue{
						Type:          "text",
						ParameterName: p.ParamName,
						Text:          variables[p.ParamName],
					})
				}
			} else {
				for _, match := range positionalParamPattern.FindAllStringSubmatch(component.Text, -1) {
					params = append(params, wire.ParamValue{
						Type: "text",
						Text: variables[match[1]],
					})
				}
			}
			if len(params) > 0 {
				components = append(components, wire.ComponentParams{
					Type:       "body",
					Parameters: params,
				})
			}

		case "buttons":
			for i, button := range component.Buttons {
				if !strings.EqualFold(button.Type, "URL") || !strings.Contains(button.URL, "{{") {
					continue
				}
				key := ButtonVariable{ButtonIndex: i, ParamIndex: 1}.Key()
				components = append(components, wire.ComponentParams{
					Type:    "button",
					SubType: "url",
					Index:   strconv.Itoa(i),
					Parameters: []wire.ParamValue{
						{Type: "text", Text: variables[key]},
					},
				})
			}
		}
	}
	return components, nil
}
