package vault

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"memovault/internal/config"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDrive writes notes into a Google Drive folder, for vaults synced through
// Drive rather than the local filesystem.
type GDrive struct {
	drive    *drive.Service
	folderID string
}

// NewGDrive creates a Drive backend using application default credentials.
func NewGDrive(ctx context.Context) (*GDrive, error) {
	credentials, err := google.FindDefaultCredentials(ctx, config.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to find default credentials: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithCredentials(credentials))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	slog.Info("Google Drive vault initialized", "folder_id", config.VaultDriveFolder)
	return &GDrive{drive: service, folderID: config.VaultDriveFolder}, nil
}

// NewGDriveWithClient wraps an existing Drive service (for testing).
func NewGDriveWithClient(service *drive.Service, folderID string) *GDrive {
	return &GDrive{drive: service, folderID: folderID}
}

// WriteNote uploads the note, updating in place when a note with the same
// name already exists in the vault folder.
func (g *GDrive) WriteNote(_ context.Context, name, content string) (string, error) {
	existingID, err := g.findNote(name)
	if err != nil {
		return "", err
	}

	if existingID != "" {
		_, err := g.drive.Files.Update(existingID, &drive.File{}).
			Media(strings.NewReader(content)).Do()
		if err != nil {
			return "", fmt.Errorf("updating note %s: %w", name, err)
		}
		return noteURL(existingID), nil
	}

	file := &drive.File{Name: name, MimeType: "text/markdown"}
	if g.folderID != "" {
		file.Parents = []string{g.folderID}
	}

	created, err := g.drive.Files.Create(file).
		Media(strings.NewReader(content)).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("creating note %s: %w", name, err)
	}
	return noteURL(created.Id), nil
}

// findNote returns the id of an existing note with this name, or "".
func (g *GDrive) findNote(name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", strings.ReplaceAll(name, "'", `\'`))
	if g.folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", g.folderID)
	}

	list, err := g.drive.Files.List().Q(query).Fields("files(id, name)").PageSize(1).Do()
	if err != nil {
		return "", fmt.Errorf("searching for note %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func noteURL(id string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", id)
}
