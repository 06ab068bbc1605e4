package profile

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/coreos/go-semver/semver"
	"gopkg.in/yaml.v3"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds the result of validating settings.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// Err folds the errors into one error value, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

var (
	serverIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	envVarPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate checks settings. reserved lists tool names owned by built-in
// detectors that custom tools may not reuse.
func Validate(settings Settings, reserved ...string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	validateServers(settings.McpServers, result)
	validateCustomTools(settings.CustomTools, reserved, result)
	validateLimits(settings, result)

	result.Valid = len(result.Errors) == 0
	return result
}

// ValidateFile loads and validates a settings file.
func ValidateFile(path string, reserved ...string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{"", fmt.Sprintf("invalid YAML: %v", err)}},
		}, nil
	}
	return Validate(settings.withDefaults(), reserved...), nil
}

func validateServers(servers []ServerConfig, result *ValidationResult) {
	seen := make(map[string]int)
	for i, srv := range servers {
		field := fmt.Sprintf("mcp_servers[%d]", i)
		srv = srv.Normalize()

		switch {
		case srv.ID == "":
			result.Errors = append(result.Errors, ValidationError{field + ".id", "required field is missing"})
		case strings.Contains(srv.ID, "__"):
			result.Errors = append(result.Errors, ValidationError{field + ".id", "must not contain \"__\" (reserved as the tool namespace separator)"})
		case strings.HasSuffix(srv.ID, "_"):
			result.Errors = append(result.Errors, ValidationError{field + ".id", "must not end with \"_\" (it would merge into the namespace separator)"})
		case !serverIDPattern.MatchString(srv.ID):
			result.Errors = append(result.Errors, ValidationError{field + ".id", "must be letters, numbers, hyphens and underscores only"})
		}
		if prev, dup := seen[srv.ID]; dup && srv.ID != "" {
			result.Errors = append(result.Errors, ValidationError{field + ".id", fmt.Sprintf("duplicate of mcp_servers[%d]", prev)})
		} else {
			seen[srv.ID] = i
		}

		if srv.Command == "" {
			result.Errors = append(result.Errors, ValidationError{field + ".command", "required field is missing"})
		}

		for k := range srv.Env {
			if !envVarPattern.MatchString(k) {
				result.Errors = append(result.Errors, ValidationError{field + ".env." + k, "invalid environment variable name"})
			}
		}
		for k, id := range srv.SecretsEnv {
			if !envVarPattern.MatchString(k) {
				result.Errors = append(result.Errors, ValidationError{field + ".secrets_env." + k, "invalid environment variable name"})
			}
			if strings.TrimSpace(id) == "" {
				result.Errors = append(result.Errors, ValidationError{field + ".secrets_env." + k, "secret identifier is empty"})
			}
			if _, clash := srv.Env[k]; clash {
				result.Warnings = append(result.Warnings, ValidationError{field + ".secrets_env." + k, "also set in env; the secret wins"})
			}
		}
	}
}

func validateCustomTools(tools []CustomTool, reserved []string, result *ValidationResult) {
	taken := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		taken[r] = true
	}
	for i, tool := range tools {
		field := fmt.Sprintf("custom_tools[%d]", i)
		if tool.Name == "" {
			result.Errors = append(result.Errors, ValidationError{field + ".name", "required field is missing"})
		} else if !toolNamePattern.MatchString(tool.Name) {
			result.Errors = append(result.Errors, ValidationError{field + ".name", "must be lowercase letters, numbers, and hyphens only, starting with a letter"})
		} else if taken[tool.Name] {
			result.Errors = append(result.Errors, ValidationError{field + ".name", fmt.Sprintf("%q is already registered", tool.Name)})
		}
		taken[tool.Name] = true

		if tool.Command == "" {
			result.Errors = append(result.Errors, ValidationError{field + ".command", "required field is missing"})
		}
		if tool.SemverPattern != "" {
			if _, err := regexp.Compile(tool.SemverPattern); err != nil {
				result.Errors = append(result.Errors, ValidationError{field + ".semver_pattern", fmt.Sprintf("invalid regular expression: %v", err)})
			}
		}
		if tool.MinimumVersion != "" {
			if _, err := semver.NewVersion(tool.MinimumVersion); err != nil {
				result.Errors = append(result.Errors, ValidationError{field + ".minimum_version", "must be a valid semantic version (e.g., 1.0.0)"})
			}
		}
		if len(tool.VersionSignature) == 0 && len(tool.HelpSignature) == 0 && tool.SemverPattern == "" {
			result.Warnings = append(result.Warnings, ValidationError{field, "no signature configured; any binary printing a version number will be accepted"})
		}
		if tool.Instructions == "" {
			result.Warnings = append(result.Warnings, ValidationError{field + ".install_instructions", "recommended field is missing"})
		}
	}
}

func validateLimits(settings Settings, result *ValidationResult) {
	if settings.ControlPort < 0 || settings.ControlPort > 65535 {
		result.Errors = append(result.Errors, ValidationError{"control_port", "must be between 0 and 65535"})
	}
	if settings.MaxLineBytes < 0 {
		result.Errors = append(result.Errors, ValidationError{"max_line_bytes", "must not be negative"})
	} else if settings.MaxLineBytes > 0 && settings.MaxLineBytes < 4096 {
		result.Warnings = append(result.Warnings, ValidationError{"max_line_bytes", "very small line limit; large tool lists will fail"})
	}
	if settings.DetectionTTL < 0 {
		result.Errors = append(result.Errors, ValidationError{"detection_ttl", "must not be negative"})
	}
}
