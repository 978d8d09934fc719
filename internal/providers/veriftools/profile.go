package veriftools

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Submit body encodings.
const (
	EncodingMultipart = "multipart"
	EncodingJSON      = "json"
)

// TaskIDPlaceholder is substituted with the task id in StatusPath.
const TaskIDPlaceholder = "{task_id}"

// Profile captures the conventions of one remote deployment. Deployments agree
// on the overall flow but disagree on field names, the ready signal and the
// payment ceremony.
type Profile struct {
	Name           string   `mapstructure:"name"`
	BaseURL        string   `mapstructure:"base_url"`
	SubmitPath     string   `mapstructure:"submit_path"`
	SubmitEncoding string   `mapstructure:"submit_encoding"`
	StatusPath     string   `mapstructure:"status_path"`
	TaskIDFields   []string `mapstructure:"task_id_fields"`
	StatusFields   []string `mapstructure:"status_fields"`
	ResultFields   []string `mapstructure:"result_fields"`
	ReadyTokens    []string `mapstructure:"ready_tokens"`
	ErrorTokens    []string `mapstructure:"error_tokens"`
	// ReadyOnResult treats a populated result field as ready whatever the
	// status field says.
	ReadyOnResult   bool   `mapstructure:"ready_on_result"`
	PaymentRequired bool   `mapstructure:"payment_required"`
	PayPath         string `mapstructure:"pay_path"`
	TokenFetch      bool   `mapstructure:"token_fetch"`
	TokenPath       string `mapstructure:"token_path"`
	CSRFCookie      string `mapstructure:"csrf_cookie"`
	CSRFHeader      string `mapstructure:"csrf_header"`
}

// BuiltinProfiles returns the deployments known to work out of the box.
func BuiltinProfiles() map[string]Profile {
	base := Profile{
		BaseURL:        "https://api.veriftools.com",
		SubmitPath:     "/api/integration/generate/",
		SubmitEncoding: EncodingMultipart,
		StatusPath:     "/api/integration/generation-status/" + TaskIDPlaceholder + "/",
		TaskIDFields:   []string{"task_id", "id", "data.task_id"},
		StatusFields:   []string{"task_status", "status", "state"},
		ResultFields:   []string{"image_url", "result_url", "url", "data.image_url"},
		ReadyTokens:    []string{"END", "READY", "DONE", "SUCCESS", "COMPLETED"},
		ErrorTokens:    []string{"ERROR", "FAILED", "FAILURE"},
		ReadyOnResult:  true,
		PayPath:        "/api/integration/pay-for-result/",
		CSRFCookie:     "csrftoken",
		CSRFHeader:     "X-CSRFToken",
	}

	veriftools := base
	veriftools.Name = "veriftools"
	veriftools.PaymentRequired = true

	fans := base
	fans.Name = "veriftools-fans"
	fans.BaseURL = "https://api.veriftools.fans"
	fans.PaymentRequired = true
	fans.TokenFetch = true
	fans.TokenPath = "/en/"

	direct := base
	direct.Name = "direct"

	return map[string]Profile{
		veriftools.Name: veriftools,
		fans.Name:       fans,
		direct.Name:     direct,
	}
}

// Validate checks that the profile can drive a full flow.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("veriftools: profile name is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("veriftools: profile %s: invalid base url %q", p.Name, p.BaseURL)
	}
	if p.SubmitPath == "" {
		return fmt.Errorf("veriftools: profile %s: submit path is required", p.Name)
	}
	if !strings.Contains(p.StatusPath, TaskIDPlaceholder) {
		return fmt.Errorf("veriftools: profile %s: status path must contain %s", p.Name, TaskIDPlaceholder)
	}
	switch p.SubmitEncoding {
	case "", EncodingMultipart, EncodingJSON:
	default:
		return fmt.Errorf("veriftools: profile %s: unknown submit encoding %q", p.Name, p.SubmitEncoding)
	}
	if len(p.TaskIDFields) == 0 {
		return fmt.Errorf("veriftools: profile %s: task id fields are required", p.Name)
	}
	if len(p.ResultFields) == 0 {
		return fmt.Errorf("veriftools: profile %s: result fields are required", p.Name)
	}
	if len(p.ReadyTokens) == 0 && !p.ReadyOnResult {
		return fmt.Errorf("veriftools: profile %s: no ready signal configured", p.Name)
	}
	if p.PaymentRequired && p.PayPath == "" {
		return fmt.Errorf("veriftools: profile %s: pay path is required", p.Name)
	}
	if p.TokenFetch && (p.TokenPath == "" || p.CSRFCookie == "" || p.CSRFHeader == "") {
		return fmt.Errorf("veriftools: profile %s: token fetch needs token path, cookie and header", p.Name)
	}
	return nil
}

// Merge overlays the non-empty string and list values of override on p.
// Boolean switches are left to the caller, which knows whether they were set.
func (p Profile) Merge(override Profile) Profile {
	out := p
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setList := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	setString(&out.Name, override.Name)
	setString(&out.BaseURL, override.BaseURL)
	setString(&out.SubmitPath, override.SubmitPath)
	setString(&out.SubmitEncoding, override.SubmitEncoding)
	setString(&out.StatusPath, override.StatusPath)
	setString(&out.PayPath, override.PayPath)
	setString(&out.TokenPath, override.TokenPath)
	setString(&out.CSRFCookie, override.CSRFCookie)
	setString(&out.CSRFHeader, override.CSRFHeader)
	setList(&out.TaskIDFields, override.TaskIDFields)
	setList(&out.StatusFields, override.StatusFields)
	setList(&out.ResultFields, override.ResultFields)
	setList(&out.ReadyTokens, override.ReadyTokens)
	setList(&out.ErrorTokens, override.ErrorTokens)
	return out
}

func (p Profile) statusURL(taskID string) string {
	path := strings.ReplaceAll(p.StatusPath, TaskIDPlaceholder, url.PathEscape(taskID))
	return p.endpoint(path)
}

func (p Profile) endpoint(path string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// GeneratorSlug turns a generator page URL such as
// https://verif.tools/uk_passport/ into the template id "uk_passport". Plain
// ids are returned unchanged.
func GeneratorSlug(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		return strings.Trim(s, "/")
	}
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}
