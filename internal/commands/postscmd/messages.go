package postscmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	syncDirectoryMessageType   = "postindex.posts.sync_directory"
	verifyDirectoryMessageType = "postindex.posts.verify_directory"
)

var notBlank = validation.By(func(value any) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return validation.NewError("postindex.posts.directory_required", "directory is required")
	}
	return nil
})

// SyncDirectoryCommand runs one reconciliation pass over Directory.
type SyncDirectoryCommand struct {
	Directory string `json:"directory"`
}

// Type implements command.Message.
func (SyncDirectoryCommand) Type() string { return syncDirectoryMessageType }

// Validate implements command.Message.
func (cmd SyncDirectoryCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Directory, validation.Required, notBlank),
	)
}

// VerifyDirectoryCommand lints every post in Directory.
type VerifyDirectoryCommand struct {
	Directory string `json:"directory"`
	// Extension defaults to ".md" when empty.
	Extension string `json:"extension,omitempty"`
}

// Type implements command.Message.
func (VerifyDirectoryCommand) Type() string { return verifyDirectoryMessageType }

// Validate implements command.Message.
func (cmd VerifyDirectoryCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Directory, validation.Required, notBlank),
		validation.Field(&cmd.Extension, validation.When(cmd.Extension != "", validation.Match(extensionPattern))),
	)
}
