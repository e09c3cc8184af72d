package config

import "fmt"

// Validate applies the rules the CUE schema cannot express. All
// violations are collected rather than failing on the first, so a bad
// policy table reports every problem at once.
func Validate(cfg *Config) []*Error {
	var errs []*Error

	if cfg.Docker == "" {
		errs = append(errs, &Error{Code: ErrEmptyField, Message: "docker binary must not be empty"})
	}
	if cfg.PythonABI == "" {
		errs = append(errs, &Error{Code: ErrEmptyField, Message: "python_abi must not be empty"})
	}
	if cfg.Tool.Command == "" {
		errs = append(errs, &Error{Code: ErrEmptyField, Message: "tool.command must not be empty"})
	}
	if cfg.Consumer.Image == "" {
		errs = append(errs, &Error{Code: ErrEmptyField, Message: "consumer.image must not be empty"})
	}
	if len(cfg.Policies) == 0 {
		errs = append(errs, &Error{Code: ErrEmptyField, Message: "policies must enumerate at least one policy"})
	}

	names := make(map[string]bool, len(cfg.Policies))
	priorities := make(map[int]string, len(cfg.Policies))
	for i, p := range cfg.Policies {
		if p.Name == "" || p.Image == "" || p.DevToolset == "" {
			errs = append(errs, &Error{
				Code:    ErrEmptyField,
				Message: fmt.Sprintf("policies[%d]: name, image, and devtoolset are required", i),
			})
			continue
		}
		if names[p.Name] {
			errs = append(errs, &Error{
				Code:    ErrDuplicateName,
				Message: fmt.Sprintf("policies[%d]: duplicate policy name %q", i, p.Name),
			})
		}
		names[p.Name] = true

		// Priorities order the policy set totally; a tie would make the
		// cross-policy matrix ambiguous, so ties are configuration errors.
		if other, dup := priorities[p.Priority]; dup {
			errs = append(errs, &Error{
				Code:    ErrDuplicatePriority,
				Message: fmt.Sprintf("policies[%d]: %q and %q share priority %d", i, other, p.Name, p.Priority),
			})
		}
		priorities[p.Priority] = p.Name
	}

	return errs
}
