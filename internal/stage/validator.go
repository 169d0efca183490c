package stage

import (
	"context"
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
)

var (
	markdownLinkRE      = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)
	malformedLinkRE     = regexp.MustCompile(`\[[^\]]*\]\([^)]*$|\[[^\]]*\]\s*\([^)]*\)\s*\(`)
	headingLineRE       = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	bracketOpenersRE    = regexp.MustCompile(`[({\[]`)
	bracketClosersRE    = regexp.MustCompile(`[)}\]]`)
	terminalPunctRE     = regexp.MustCompile(`[.!?\x60]\s*$`)

	// destructiveShellRE matches the closed pattern set spec.md §4.4
	// names for the Validator's security check.
	destructiveShellRE = regexp.MustCompile(`rm\s+-rf\s+/|:\(\)\s*\{\s*:\|\s*:&\s*\};\s*:|dd\s+if=|mkfs\.|>\s*/dev/sd`)

	// providerKeyRE is a rough provider-key-shape detector: long
	// base62/base64-ish tokens following common key-prefix literals.
	providerKeyRE = regexp.MustCompile(`\b(sk-[A-Za-z0-9]{20,}|AKIA[0-9A-Z]{16}|ghp_[A-Za-z0-9]{30,}|AIza[A-Za-z0-9_-]{30,})\b`)

	unsafeFFIRE = regexp.MustCompile(`\bunsafe\.Pointer\b|\bC\.(malloc|free|memcpy)\b|\bctypes\.(cdll|windll)\b`)
)

// BasicFindings lists prompt-independent structural defects found in
// text (spec.md §4.4 Validator "Basic" check).
type BasicFindings struct {
	UnclosedCodeFence  bool
	MismatchedBrackets bool
	TruncatedSentence  bool
	MalformedLinks     bool
	DuplicatedHeadings bool
}

// Any reports whether any basic finding fired.
func (f BasicFindings) Any() bool {
	return f.UnclosedCodeFence || f.MismatchedBrackets || f.TruncatedSentence || f.MalformedLinks || f.DuplicatedHeadings
}

// CheckBasic runs the Validator's structural checks on text.
func CheckBasic(text string) BasicFindings {
	var f BasicFindings

	if strings.Count(text, "```")%2 != 0 {
		f.UnclosedCodeFence = true
	}

	opens := len(bracketOpenersRE.FindAllString(text, -1))
	closes := len(bracketClosersRE.FindAllString(text, -1))
	if opens != closes {
		f.MismatchedBrackets = true
	}

	trimmed := strings.TrimRight(text, " \n\t")
	if len(trimmed) > 0 {
		tail := trimmed
		if len(tail) > 200 {
			tail = tail[len(tail)-200:]
		}
		if !terminalPunctRE.MatchString(tail) {
			f.TruncatedSentence = true
		}
	}

	for _, m := range markdownLinkRE.FindAllString(text, -1) {
		if malformedLinkRE.MatchString(m) {
			f.MalformedLinks = true
			break
		}
	}

	seen := make(map[string]bool)
	for _, m := range headingLineRE.FindAllStringSubmatch(text, -1) {
		h := strings.ToLower(strings.TrimSpace(m[1]))
		if seen[h] {
			f.DuplicatedHeadings = true
			break
		}
		seen[h] = true
	}

	return f
}

// SecurityFindings lists the closed set of unsafe patterns spec.md
// §4.4's Validator "Security" check looks for.
type SecurityFindings struct {
	DestructiveShell    bool
	HardcodedCredential bool
	UnsafeFFI           bool
}

// Any reports whether any security finding fired.
func (f SecurityFindings) Any() bool {
	return f.DestructiveShell || f.HardcodedCredential || f.UnsafeFFI
}

// CheckSecurity runs the Validator's security checks on text.
func CheckSecurity(text string) SecurityFindings {
	return SecurityFindings{
		DestructiveShell:    destructiveShellRE.MatchString(text),
		HardcodedCredential: providerKeyRE.MatchString(text),
		UnsafeFFI:           unsafeFFIRE.MatchString(text),
	}
}

// Validator is the third stage runner: runs prompt-independent basic
// and security checks before attaching findings to the model prompt.
type Validator struct {
	base
}

// NewValidator constructs a Validator stage runner.
func NewValidator(client modelclient.ModelClient, prices *modelclient.PriceTable) *Validator {
	return &Validator{base: base{stage: domain.StageValidator, client: client, prices: prices}}
}

func (v *Validator) Stage() domain.Stage { return domain.StageValidator }

func (v *Validator) Run(ctx context.Context, in Input) (domain.StageResult, error) {
	return timed(in.ProgressSink, domain.StageValidator, func() (domain.StageResult, error) {
		basic := CheckBasic(in.UpstreamAnswer)
		security := CheckSecurity(in.UpstreamAnswer)

		var sb strings.Builder
		sb.WriteString("Validate and fix the answer below. Produce the corrected, validated text only.")
		if basic.Any() {
			sb.WriteString("\n\nStructural findings to fix:")
			appendFinding(&sb, basic.UnclosedCodeFence, "an unclosed code fence")
			appendFinding(&sb, basic.MismatchedBrackets, "mismatched brackets")
			appendFinding(&sb, basic.TruncatedSentence, "a truncated final sentence")
			appendFinding(&sb, basic.MalformedLinks, "a malformed Markdown link")
			appendFinding(&sb, basic.DuplicatedHeadings, "duplicated headings")
		}
		if security.Any() {
			sb.WriteString("\n\nSecurity findings to remove or neutralize:")
			appendFinding(&sb, security.DestructiveShell, "a destructive shell command")
			appendFinding(&sb, security.HardcodedCredential, "a hard-coded credential")
			appendFinding(&sb, security.UnsafeFFI, "an unsafe FFI construct")
		}
		if in.InjectedContext != "" {
			sb.WriteString("\n\n" + in.InjectedContext)
		}

		messages := []modelclient.Message{
			{Role: modelclient.RoleSystem, Content: sb.String()},
			{Role: modelclient.RoleUser, Content: in.UpstreamAnswer},
		}
		return v.runModel(ctx, in, messages, temperatureFor(in.Profile, domain.StageValidator))
	})
}

func appendFinding(sb *strings.Builder, fired bool, desc string) {
	if fired {
		sb.WriteString("\n- " + desc)
	}
}
