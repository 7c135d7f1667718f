package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCorrection(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCorrection() error {
	if c.Correction.BatchSize <= 0 {
		return errors.New("correction.batch_size must be positive")
	}
	if c.Correction.BatchSize > maxCorrectionBatchSize {
		return fmt.Errorf("correction.batch_size must be at most %d", maxCorrectionBatchSize)
	}
	if c.Correction.ReferenceLimit <= 0 {
		return errors.New("correction.reference_limit must be positive")
	}
	if c.Correction.ReferenceLimit > maxCorrectionReferenceLen {
		return fmt.Errorf("correction.reference_limit must be at most %d", maxCorrectionReferenceLen)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	return nil
}
