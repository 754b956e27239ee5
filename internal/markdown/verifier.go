package markdown

import (
	"path/filepath"
	"strings"

	"github.com/goliatone/go-slug"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// Verification problems reported per file.
const (
	ProblemUnreadable    = "unreadable or empty file"
	ProblemMissingTitle  = "file does not start with a level 1 heading (# Title)"
	ProblemRenderFailed  = "markdown failed to render"
	ProblemSlugNotNormal = "filename is not a normalised slug"
)

const headingPrefix = "# "

// FileReport lists what verification found for one post file.
type FileReport struct {
	Filename string   `json:"file"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether the file passed verification. Warnings do not fail it.
func (r FileReport) OK() bool { return len(r.Errors) == 0 }

// VerifyReport aggregates per-file reports for a directory.
type VerifyReport struct {
	Dir   string       `json:"dir"`
	Files []FileReport `json:"files"`
}

// OK reports whether every file passed and at least one file was checked.
func (r VerifyReport) OK() bool {
	if len(r.Files) == 0 {
		return false
	}
	for _, f := range r.Files {
		if !f.OK() {
			return false
		}
	}
	return true
}

// Failed returns the reports carrying at least one error.
func (r VerifyReport) Failed() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if !f.OK() {
			out = append(out, f)
		}
	}
	return out
}

// Verifier lints post files: each must be readable, open with a "# " heading
// and render without error.
type Verifier struct {
	reader   *FileReader
	renderer *GoldmarkRenderer
	logger   interfaces.Logger
}

// NewVerifier wires a verifier from its collaborators.
func NewVerifier(reader *FileReader, renderer *GoldmarkRenderer, logger interfaces.Logger) *Verifier {
	if logger == nil {
		logger = logging.NoOp()
	}
	if reader == nil {
		reader = NewFileReader(logger)
	}
	if renderer == nil {
		renderer = NewGoldmarkRenderer(RenderOptions{}, logger)
	}
	return &Verifier{reader: reader, renderer: renderer, logger: logger}
}

// VerifyFile checks a single post file.
func (v *Verifier) VerifyFile(path string) FileReport {
	report := FileReport{Filename: filepath.Base(path)}

	content, err := v.reader.Read(path)
	if err != nil || strings.TrimSpace(content) == "" {
		report.Errors = append(report.Errors, ProblemUnreadable)
		v.logger.Error("markdown.verify.unreadable", "path", path, "error", err)
		return report
	}

	first, _, _ := strings.Cut(string(StripFrontMatter([]byte(content))), "\n")
	if !strings.HasPrefix(first, headingPrefix) {
		report.Errors = append(report.Errors, ProblemMissingTitle)
	}

	if out, renderErr := v.renderer.Render(content); renderErr != nil || strings.TrimSpace(out) == "" {
		report.Errors = append(report.Errors, ProblemRenderFailed)
	}

	name := strings.TrimSuffix(report.Filename, filepath.Ext(report.Filename))
	if normalized, slugErr := slug.Normalize(name); slugErr != nil || normalized != name {
		report.Warnings = append(report.Warnings, ProblemSlugNotNormal)
	}

	if report.OK() {
		v.logger.Info("markdown.verify.passed", "path", path, "warnings", len(report.Warnings))
	} else {
		v.logger.Error("markdown.verify.failed", "path", path, "errors", strings.Join(report.Errors, "; "))
	}
	return report
}

// VerifyDirectory checks every post in dir. Excluded names are still
// verified since they are served directly from disk.
func (v *Verifier) VerifyDirectory(dir, extension string) (VerifyReport, error) {
	report := VerifyReport{Dir: dir}

	names, err := ListDocuments(dir, ScanOptions{Extension: extension})
	if err != nil {
		return report, err
	}
	if len(names) == 0 {
		v.logger.Warn("markdown.verify.empty", "dir", dir)
	}

	for _, name := range names {
		report.Files = append(report.Files, v.VerifyFile(filepath.Join(dir, name)))
	}
	return report, nil
}
