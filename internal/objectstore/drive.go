package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
)

const driveFileFields = "id, name, webViewLink"

// Drive uploads files into one Google Drive folder. Re-uploading a name replaces the
// existing file's content.
type Drive struct {
	svc      *drive.Service
	folderID string
	// shareWithLink grants reader access to anyone holding the link.
	shareWithLink bool
}

// NewDrive constructs a folder-backed store.
func NewDrive(svc *drive.Service, folderID string, shareWithLink bool) *Drive {
	return &Drive{svc: svc, folderID: folderID, shareWithLink: shareWithLink}
}

func (d *Drive) Upload(ctx context.Context, key string, data []byte, contentType string) (Reference, error) {
	existing, err := d.find(ctx, key)
	if err != nil {
		return Reference{}, err
	}

	var file *drive.File
	if existing != nil {
		file, err = d.svc.Files.Update(existing.Id, &drive.File{}).
			Context(ctx).
			Media(bytes.NewReader(data)).
			SupportsAllDrives(true).
			Fields(driveFileFields).
			Do()
	} else {
		meta := &drive.File{Name: key, MimeType: contentType}
		if d.folderID != "" {
			meta.Parents = []string{d.folderID}
		}
		file, err = d.svc.Files.Create(meta).
			Context(ctx).
			Media(bytes.NewReader(data)).
			SupportsAllDrives(true).
			Fields(driveFileFields).
			Do()
	}
	if err != nil {
		return Reference{}, classifyGoogle(err)
	}

	// Granted on every upload: a retry after a failed share finds the file already created.
	if d.shareWithLink {
		_, err := d.svc.Permissions.Create(file.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
			Context(ctx).
			SupportsAllDrives(true).
			Do()
		if err != nil {
			return Reference{}, classifyGoogle(err)
		}
	}

	return Reference{Key: key, ID: file.Id, URL: file.WebViewLink}, nil
}

func (d *Drive) Ping(ctx context.Context) error {
	if d.folderID == "" {
		_, err := d.svc.About.Get().Context(ctx).Fields("user").Do()
		if err != nil {
			return classifyGoogle(err)
		}
		return nil
	}
	if _, err := d.svc.Files.Get(d.folderID).Context(ctx).SupportsAllDrives(true).Fields("id").Do(); err != nil {
		return classifyGoogle(err)
	}
	return nil
}

func (d *Drive) find(ctx context.Context, name string) (*drive.File, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", escapeDriveQuery(name))
	if d.folderID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeDriveQuery(d.folderID))
	}

	list, err := d.svc.Files.List().
		Context(ctx).
		Q(q).
		Fields("files(" + driveFileFields + ")").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Do()
	if err != nil {
		return nil, classifyGoogle(err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	return list.Files[0], nil
}

func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
