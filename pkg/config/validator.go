package config

// Validator checks a Config for problems without failing on the first one,
// collecting a full ValidationErrorList the way the teacher's config
// validator does for device simulation files.
type Validator struct {
	errors *ValidationErrorList
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{errors: &ValidationErrorList{Valid: true}}
}

// Validate validates a complete configuration and returns every problem found.
func (v *Validator) Validate(cfg *Config) *ValidationErrorList {
	if cfg == nil {
		v.addError("config", "configuration is nil")
		return v.errors
	}

	v.validatePort("rx_port", cfg.RXPort)
	v.validatePort("tx_port", cfg.TXPort)

	if cfg.RXPort == cfg.TXPort {
		v.addError("rx_port/tx_port", "receive and send ports must differ")
	}

	if cfg.Adapter < 0 {
		v.addError("adapter", "adapter index must be >= 0")
	}

	if cfg.StatusAddr == "" {
		v.addWarning("status_addr", "empty status address disables the status API")
	}

	if cfg.DebugLevel < 0 {
		v.addError("debug_level", "debug level must be >= 0")
	}

	if cfg.NoObjectManager && cfg.DryRun {
		v.addWarning("no_object_manager", "dry_run already disables all host transports; no_object_manager has no effect")
	}

	return v.errors
}

func (v *Validator) validatePort(field string, port int) {
	if port <= 0 || port > 65535 {
		v.addError(field, "must be a valid UDP port in [1,65535]")
	}
}

func (v *Validator) addError(field, message string) {
	v.errors.Valid = false
	v.errors.Errors = append(v.errors.Errors, ValidationError{
		Field:    field,
		Message:  message,
		Severity: SeverityError,
	})
}

func (v *Validator) addWarning(field, message string) {
	v.errors.Errors = append(v.errors.Errors, ValidationError{
		Field:    field,
		Message:  message,
		Severity: SeverityWarning,
	})
}
