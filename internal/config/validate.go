package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Signup.validate(); err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	if err := c.OTP.validate(); err != nil {
		return fmt.Errorf("otp: %w", err)
	}
	return nil
}

func (s *SignupConfig) validate() error {
	if s.ReservationTTL <= 0 {
		return fmt.Errorf("reservation_ttl must be > 0 (got %v)", s.ReservationTTL)
	}
	return nil
}

func (o *OTPConfig) validate() error {
	if o.CodeLength < 4 || o.CodeLength > 10 {
		return fmt.Errorf("code_length must be between 4 and 10 (got %d)", o.CodeLength)
	}
	if o.TTL <= 0 {
		return fmt.Errorf("ttl must be > 0 (got %v)", o.TTL)
	}
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be > 0 (got %d)", o.MaxAttempts)
	}
	if o.ResendCooldown < 0 {
		return fmt.Errorf("resend_cooldown must be >= 0 (got %v)", o.ResendCooldown)
	}
	return nil
}
