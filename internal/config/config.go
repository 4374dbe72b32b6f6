// Package config loads and normalizes the triage daemon's YAML/JSON
// configuration file: mail transport, triage rules, automation
// thresholds, and AI assistant settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inboxd/triaged/internal/types"
)

// Fastmail holds the JMAP session endpoint and credential.
type Fastmail struct {
	APIToken   string `yaml:"api_token" json:"api_token"`
	SessionURL string `yaml:"session_url" json:"session_url"`
}

// Mail describes which mailboxes and identities the daemon operates on.
type Mail struct {
	Account        string   `yaml:"account" json:"account"`
	Mailbox        string   `yaml:"mailbox" json:"mailbox"`
	SentMailbox    string   `yaml:"sent_mailbox" json:"sent_mailbox"`
	DraftsMailbox  string   `yaml:"drafts_mailbox" json:"drafts_mailbox"`
	TrashMailbox   string   `yaml:"trash_mailbox" json:"trash_mailbox"`
	ArchiveMailbox string   `yaml:"archive_mailbox" json:"archive_mailbox"`
	SenderEmails   []string `yaml:"sender_emails" json:"sender_emails"`
}

// Triage holds rule-classifier tuning knobs.
type Triage struct {
	UrgentKeywords        []string `yaml:"urgent_keywords" json:"urgent_keywords"`
	VIPSenders            []string `yaml:"vip_senders" json:"vip_senders"`
	VIPFrequencyThreshold int      `yaml:"vip_frequency_threshold" json:"vip_frequency_threshold"`
}

// Automation holds the per-cycle policy thresholds. Zero values are
// filled in by NormalizeAutomation, matching
// normalize_automation_settings's defaulting.
type Automation struct {
	MaxEmailsPerCycle     int      `yaml:"max_emails_per_cycle" json:"max_emails_per_cycle"`
	AutoDraft             *bool    `yaml:"auto_draft" json:"auto_draft"`
	AutoArchiveLowPriority *bool   `yaml:"auto_archive_low_priority" json:"auto_archive_low_priority"`
	AutoArchivePriorities []string `yaml:"auto_archive_priorities" json:"auto_archive_priorities"`
	ReplyAll              *bool    `yaml:"reply_all" json:"reply_all"`
	DraftActionableOnly   *bool    `yaml:"draft_actionable_only" json:"draft_actionable_only"`
	MinPriorityForDraft   string   `yaml:"min_priority_for_draft" json:"min_priority_for_draft"`
	StateDB               string   `yaml:"state_db" json:"state_db"`
	LoopIntervalSeconds   int      `yaml:"loop_interval_seconds" json:"loop_interval_seconds"`
	UseCodex              *bool    `yaml:"use_codex" json:"use_codex"`
	CodexTimeoutSeconds   int      `yaml:"codex_timeout_seconds" json:"codex_timeout_seconds"`
	CodexFallbackToRules  *bool    `yaml:"codex_fallback_to_rules" json:"codex_fallback_to_rules"`
	CodexMaxBodyChars     int      `yaml:"codex_max_body_chars" json:"codex_max_body_chars"`

	// auto_archive_priorities resolved to its final lowercase, sorted,
	// filtered form. Populated by NormalizeAutomation; read this, not
	// the raw field above, once the config has been loaded.
	ResolvedArchivePriorities []string `yaml:"-" json:"-"`
}

// Codex holds the AI backend's model and auth settings.
type Codex struct {
	Model           string `yaml:"model" json:"model"`
	ReasoningEffort string `yaml:"reasoning_effort" json:"reasoning_effort"`
	AuthMode        string `yaml:"auth_mode" json:"auth_mode"`
	APIKey          string `yaml:"api_key" json:"api_key"`
	APIKeyEnv       string `yaml:"api_key_env" json:"api_key_env"`
	BaseURL         string `yaml:"base_url" json:"base_url"`
}

// AI selects and configures the LLM assistance backend.
type AI struct {
	Backend string `yaml:"backend" json:"backend"`
	Codex   Codex  `yaml:"codex" json:"codex"`
}

// Drafting holds reply-composition settings.
type Drafting struct {
	Signature string `yaml:"signature" json:"signature"`
}

// Config is the root of the triage daemon's configuration file.
type Config struct {
	Fastmail Fastmail `yaml:"fastmail" json:"fastmail"`
	Mail     Mail     `yaml:"mail" json:"mail"`
	Triage   Triage   `yaml:"triage" json:"triage"`
	// Automation and AI are kept here as raw/partial sections; callers
	// should use NormalizeAutomation and NormalizeAI to get fully
	// defaulted, validated settings rather than reading these directly.
	Automation Automation `yaml:"automation" json:"automation"`
	AI         AI         `yaml:"ai" json:"ai"`
	Drafting   Drafting   `yaml:"drafting" json:"drafting"`
}

const envConfigPath = "EMAIL_TRIAGE_CONFIG"

// Load searches, in order, an explicit path, the EMAIL_TRIAGE_CONFIG
// environment variable, and a fixed set of default locations, parses
// the first file found as YAML or JSON by extension, and returns the
// config plus the path it was loaded from.
func Load(explicitPath string) (*Config, string, error) {
	var candidates []string
	if explicitPath != "" {
		candidates = append(candidates, explicitPath)
	}
	if envPath := os.Getenv(envConfigPath); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates,
		expandHome("~/.config/email-triage/config.yaml"),
		expandHome("~/.config/email-triage/config.yml"),
		expandHome("~/.config/email-triage/config.json"),
		expandHome("~/.config/email-manager/config.yaml"),
		expandHome("~/.config/email-manager/config.yml"),
		expandHome("~/.config/email-manager/config.json"),
	)

	seen := make(map[string]bool)
	for _, candidate := range candidates {
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cfg, err := parseFile(candidate)
		if err != nil {
			return nil, "", &types.ConfigError{Path: candidate, Err: err}
		}
		if err := normalizeMail(cfg); err != nil {
			return nil, "", &types.ConfigError{Path: candidate, Err: err}
		}
		return cfg, candidate, nil
	}

	return nil, "", &types.ConfigError{
		Err: fmt.Errorf("config file not found, searched: %s (set %s or pass --config)",
			strings.Join(candidates, ", "), envConfigPath),
	}
}

func parseFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}
	return cfg, nil
}

func normalizeMail(cfg *Config) error {
	if cfg.Fastmail.APIToken == "" {
		cfg.Fastmail.APIToken = os.Getenv("FASTMAIL_API_TOKEN")
	}
	if cfg.Fastmail.APIToken == "" {
		return fmt.Errorf("missing fastmail API token: set fastmail.api_token or FASTMAIL_API_TOKEN")
	}
	if cfg.Fastmail.SessionURL == "" {
		cfg.Fastmail.SessionURL = "https://api.fastmail.com/jmap/session"
	}

	if cfg.Mail.Account == "" {
		cfg.Mail.Account = "Fastmail"
	}
	if cfg.Mail.Mailbox == "" {
		cfg.Mail.Mailbox = "INBOX"
	}
	if cfg.Mail.SentMailbox == "" {
		cfg.Mail.SentMailbox = "Sent"
	}
	if cfg.Mail.DraftsMailbox == "" {
		cfg.Mail.DraftsMailbox = "Drafts"
	}
	if cfg.Mail.TrashMailbox == "" {
		cfg.Mail.TrashMailbox = "Trash"
	}
	if cfg.Mail.ArchiveMailbox == "" {
		cfg.Mail.ArchiveMailbox = "Archive"
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// NormalizeAutomation applies the automation section's defaults and
// resolves auto_archive_priorities from either an explicit list or the
// auto_archive_low_priority boolean, matching
// normalize_automation_settings's explicit-list-overrides-boolean rule.
func NormalizeAutomation(cfg *Config) Automation {
	a := cfg.Automation
	if a.MaxEmailsPerCycle <= 0 {
		a.MaxEmailsPerCycle = 20
	}
	if a.MinPriorityForDraft == "" {
		a.MinPriorityForDraft = types.PriorityHigh
	}
	if a.StateDB == "" {
		a.StateDB = "~/.config/email-triage/triage.db"
	}
	a.StateDB = expandHome(a.StateDB)
	if a.LoopIntervalSeconds <= 0 {
		a.LoopIntervalSeconds = 900
	}
	if a.CodexTimeoutSeconds <= 0 {
		a.CodexTimeoutSeconds = 60
	}
	if a.CodexMaxBodyChars <= 0 {
		a.CodexMaxBodyChars = 4000
	}

	autoDraft := boolOr(a.AutoDraft, true)
	a.AutoDraft = &autoDraft
	replyAll := boolOr(a.ReplyAll, true)
	a.ReplyAll = &replyAll
	draftActionableOnly := boolOr(a.DraftActionableOnly, true)
	a.DraftActionableOnly = &draftActionableOnly
	useCodex := boolOr(a.UseCodex, true)
	a.UseCodex = &useCodex
	codexFallback := boolOr(a.CodexFallbackToRules, true)
	a.CodexFallbackToRules = &codexFallback
	autoArchiveLow := boolOr(a.AutoArchiveLowPriority, true)
	a.AutoArchiveLowPriority = &autoArchiveLow

	var archivePriorities []string
	if a.AutoArchivePriorities != nil {
		archivePriorities = a.AutoArchivePriorities
	} else if autoArchiveLow {
		archivePriorities = []string{types.PriorityLow, types.PriorityMedium}
	}

	resolved := make(map[string]bool)
	for _, p := range archivePriorities {
		v := strings.ToLower(strings.TrimSpace(p))
		if types.IsValidPriority(v) {
			resolved[v] = true
		}
	}
	a.ResolvedArchivePriorities = sortedKeys(resolved)

	return a
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeAI resolves the AI backend settings, validating the backend
// name and choosing between subscription (subprocess) and api_key
// (HTTP) auth modes the way normalize_ai_settings does.
func NormalizeAI(cfg *Config) (Codex, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.AI.Backend))
	if backend == "" {
		backend = "codex"
	}
	if backend != "codex" {
		return Codex{}, fmt.Errorf("unsupported ai.backend %q: this pipeline is codex-only", backend)
	}

	codex := cfg.AI.Codex
	if codex.Model == "" {
		codex.Model = "gpt-5-codex"
	}
	codex.ReasoningEffort = strings.ToLower(strings.TrimSpace(codex.ReasoningEffort))

	authMode := strings.ToLower(strings.TrimSpace(codex.AuthMode))
	if authMode == "" {
		authMode = "subscription"
	}
	if authMode != "subscription" && authMode != "api_key" && authMode != "auto" {
		return Codex{}, fmt.Errorf("invalid ai.codex.auth_mode %q: use subscription, api_key, or auto", authMode)
	}

	apiKey := codex.APIKey
	if apiKey == "" {
		envVar := codex.APIKeyEnv
		if envVar == "" {
			envVar = "OPENAI_API_KEY"
		}
		apiKey = os.Getenv(envVar)
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("CODEX_API_KEY")
	}

	resolvedMode := authMode
	if authMode == "auto" {
		if apiKey != "" {
			resolvedMode = "api_key"
		} else {
			resolvedMode = "subscription"
		}
	}

	if codex.BaseURL == "" {
		codex.BaseURL = "https://api.openai.com/v1"
	}
	codex.BaseURL = strings.TrimSuffix(codex.BaseURL, "/")
	codex.AuthMode = resolvedMode

	if resolvedMode == "api_key" {
		if apiKey == "" {
			return Codex{}, fmt.Errorf("missing codex API key: set ai.codex.api_key or OPENAI_API_KEY")
		}
		codex.APIKey = apiKey
	}

	return codex, nil
}
