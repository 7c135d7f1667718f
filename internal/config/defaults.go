package config

const (
	defaultLogDir             = "~/.local/share/sublime/logs"
	defaultLockFile           = "~/.local/share/sublime/sublime.lock"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/sublime-captions/sublime"
	defaultLLMTitle           = "SubLime Captions"
	defaultLLMTimeoutSeconds  = 60
	defaultBatchSize          = 20
	defaultReferenceLimit     = 10000
	maxCorrectionBatchSize    = 100
	maxCorrectionReferenceLen = 100000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			LockFile: defaultLockFile,
			APIBind:  defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Correction: Correction{
			BatchSize:      defaultBatchSize,
			ReferenceLimit: defaultReferenceLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
