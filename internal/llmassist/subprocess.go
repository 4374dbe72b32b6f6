package llmassist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/inboxd/triaged/internal/types"
)

// SubprocessProvider triages via a locally installed `codex` CLI
// authenticated with a ChatGPT subscription login, the auth_mode:
// subscription path. It shells out to `codex exec` once per message.
type SubprocessProvider struct {
	Model           string
	ReasoningEffort string
	Timeout         time.Duration

	codexBin string
}

// NewSubprocessProvider locates the codex binary on PATH and verifies
// it reports a logged-in session. Both failures are returned as
// *types.LLMError so callers can fall back to the rule classifier.
func NewSubprocessProvider(ctx context.Context, model, reasoningEffort string, timeout time.Duration) (*SubprocessProvider, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	bin, err := exec.LookPath("codex")
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-cli", Err: fmt.Errorf("`codex` CLI not found in PATH: install Codex CLI or use api_key auth mode")}
	}

	p := &SubprocessProvider{Model: model, ReasoningEffort: reasoningEffort, Timeout: timeout, codexBin: bin}
	if err := p.ensureLoggedIn(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SubprocessProvider) ensureLoggedIn(ctx context.Context) error {
	statusCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(statusCtx, p.codexBin, "login", "status")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	statusText := strings.ToLower(stdout.String() + "\n" + stderr.String())
	if runErr != nil || !strings.Contains(statusText, "logged in") {
		return &types.LLMError{Provider: "codex-cli", Err: fmt.Errorf("codex subscription login not found: run `codex login` (ChatGPT sign-in) and retry")}
	}
	return nil
}

func (p *SubprocessProvider) Triage(ctx context.Context, payload Payload, baseline Baseline, fallbackReply string) (*Result, error) {
	req := buildRequestPayload(payload, baseline, fallbackReply)
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-cli", Err: err}
	}
	prompt := "You are an email triage assistant. " +
		"Return STRICT JSON matching the schema, no markdown, no extra text.\n\n" + string(reqJSON)

	tmpDir, err := os.MkdirTemp("", "codex_triage_")
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-cli", Err: err}
	}
	defer os.RemoveAll(tmpDir)

	schemaPath := filepath.Join(tmpDir, "schema.json")
	outPath := filepath.Join(tmpDir, "response.txt")
	schemaJSON, err := json.Marshal(responseSchema)
	if err != nil {
		return nil, &types.LLMError{Provider: "codex-cli", Err: err}
	}
	if err := os.WriteFile(schemaPath, schemaJSON, 0o600); err != nil {
		return nil, &types.LLMError{Provider: "codex-cli", Err: err}
	}

	args := []string{
		"exec",
		"--ephemeral",
		"--skip-git-repo-check",
		"--sandbox", "read-only",
		"--model", p.Model,
		"--color", "never",
		"--output-schema", schemaPath,
		"-o", outPath,
	}
	if p.ReasoningEffort != "" {
		effort, _ := json.Marshal(p.ReasoningEffort)
		args = append(args, "-c", "reasoning.effort="+string(effort))
	}
	args = append(args, "-")

	runCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.codexBin, args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return nil, &types.LLMError{Provider: "codex-cli", Err: fmt.Errorf("codex CLI timed out after %s", p.Timeout)}
		}
		return nil, &types.LLMError{Provider: "codex-cli", Err: fmt.Errorf(
			"codex CLI failed: %w. stdout=%q stderr=%q", err, truncate(stdout.String(), 500), truncate(stderr.String(), 500))}
	}

	outputText := ""
	if raw, err := os.ReadFile(outPath); err == nil {
		outputText = strings.TrimSpace(string(raw))
	}
	if outputText == "" {
		outputText = strings.TrimSpace(stdout.String())
	}
	if outputText == "" {
		return nil, &types.LLMError{Provider: "codex-cli", Err: fmt.Errorf("codex CLI returned empty response")}
	}

	parsed, err := parseJSONFromText(outputText)
	if err != nil {
		return nil, err
	}
	return normalizeResult(parsed, fallbackReply)
}
