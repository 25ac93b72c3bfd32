package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/editorial-eng/packsync/internal/common"
)

// Type discriminators persisted in the "_code" field of every
// serialized snapshot. Deserialization dispatches on this tag and
// falls back to the base variant for unrecognised values.
const (
	CodeBase  = "GDRIVE"
	CodeText  = "GDRIVE_TXT"
	CodeImage = "GDRIVE_IMG"
)

// DriveItem is one entry of an external folder listing, already
// reduced to the fields the snapshot model cares about.
type DriveItem struct {
	ID            string
	Title         string
	MimeType      string
	SelfLink      string
	AltLink       string
	ThumbnailLink string
	ModifiedDate  time.Time
	ModifiedBy    string
}

// Snapshot is the polymorphic value object wrapping one externally
// sourced file. Concrete variants are DriveFile (base), TextFile and
// ImageFile. Snapshots are owned by a package's cache or an item's
// data payload and have no independent lifecycle.
type Snapshot interface {
	// File exposes the shared base metadata.
	File() *DriveFile
	// DataType returns the item discriminator for this snapshot.
	DataType() string
	// ToJSON serializes the snapshot including its type tag.
	ToJSON() (map[string]any, error)
}

// DriveFile holds the base metadata common to all snapshot variants.
type DriveFile struct {
	Code             string    `json:"_code"`
	DriveID          string    `json:"drive_id"`
	Title            string    `json:"title"`
	MimeType         string    `json:"mimeType"`
	SelfLink         string    `json:"selfLink"`
	AltLink          string    `json:"altLink"`
	LastModifiedBy   string    `json:"last_modified_by"`
	LastModifiedDate time.Time `json:"last_modified_date"`
}

func (f *DriveFile) File() *DriveFile { return f }

func (f *DriveFile) DataType() string { return DataTypeText }

// DownloadLink returns the authenticated media URL for the file.
func (f *DriveFile) DownloadLink() string { return f.SelfLink + "?alt=media" }

func (f *DriveFile) ToJSON() (map[string]any, error) { return toMap(f) }

// TextFile is a text document snapshot with dual parsed
// representations: plain always, rich only for formats with an HTML
// export.
type TextFile struct {
	DriveFile
	Format       Format         `json:"format"`
	ContentPlain *ParsedContent `json:"content_plain,omitempty"`
	ContentRich  *ParsedContent `json:"content_rich,omitempty"`
}

// DownloadLink selects the export flavour: HTML for the rich
// representation, plain text otherwise.
func (f *TextFile) DownloadLink(rich bool) string {
	mime := "text/plain"
	if rich {
		mime = "text/html"
	}
	return f.SelfLink + "/export?mimeType=" + mime
}

func (f *TextFile) DataType() string {
	switch f.Format {
	case FormatAML:
		return DataTypeAML
	case FormatMD:
		return DataTypeMarkdown
	default:
		return DataTypeText
	}
}

// ParseContent parses raw bytes and stores the result into the rich or
// plain slot.
func (f *TextFile) ParseContent(p *Parser, raw []byte, rich bool) {
	pc := p.Parse(raw, f.Format)
	if rich {
		f.ContentRich = &pc
	} else {
		f.ContentPlain = &pc
	}
}

func (f *TextFile) ToJSON() (map[string]any, error) { return toMap(f) }

// ImageFile is an image snapshot. Once snapshotted into durable
// storage it carries the storage coordinates; SrcLarge is a
// time-limited public URL regenerated on demand.
type ImageFile struct {
	DriveFile
	ThumbnailLink string `json:"thumbnail_link"`
	SrcLarge      string `json:"src_large,omitempty"`
	SrcMedium     string `json:"src_medium,omitempty"`
	S3Key         string `json:"s3_key,omitempty"`
	S3Bucket      string `json:"s3_bucket,omitempty"`
	S3Region      string `json:"s3_region,omitempty"`
}

func (f *ImageFile) DataType() string { return DataTypeImage }

// Stored reports whether the image already lives in durable storage.
func (f *ImageFile) Stored() bool { return f.S3Key != "" && f.S3Bucket != "" }

func (f *ImageFile) ToJSON() (map[string]any, error) { return toMap(f) }

// LinkSigner produces time-limited public URLs for stored objects.
type LinkSigner interface {
	PublicLink(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// RefreshLink regenerates SrcLarge from the stored coordinates. It is
// a no-op for images not yet in durable storage.
func (f *ImageFile) RefreshLink(ctx context.Context, signer LinkSigner, ttl time.Duration) error {
	if !f.Stored() {
		return nil
	}
	url, err := signer.PublicLink(ctx, f.S3Bucket, f.S3Key, ttl)
	if err != nil {
		return err
	}
	f.SrcLarge = url
	return nil
}

// NewSnapshot constructs the appropriate snapshot variant from an
// external listing entry: images by mime prefix, everything else as a
// text file with its format inferred from the title.
func NewSnapshot(item DriveItem) Snapshot {
	base := DriveFile{
		DriveID:          item.ID,
		Title:            item.Title,
		MimeType:         item.MimeType,
		SelfLink:         item.SelfLink,
		AltLink:          item.AltLink,
		LastModifiedBy:   item.ModifiedBy,
		LastModifiedDate: item.ModifiedDate,
	}

	if strings.HasPrefix(item.MimeType, "image/") {
		base.Code = CodeImage
		return &ImageFile{DriveFile: base, ThumbnailLink: item.ThumbnailLink}
	}

	base.Code = CodeText
	return &TextFile{DriveFile: base, Format: InferFormat(item.Title)}
}

// fromJSONTable dispatches deserialization by discriminator.
var fromJSONTable = map[string]func([]byte) (Snapshot, error){
	CodeText: func(raw []byte) (Snapshot, error) {
		f := &TextFile{}
		return f, json.Unmarshal(raw, f)
	},
	CodeImage: func(raw []byte) (Snapshot, error) {
		f := &ImageFile{}
		return f, json.Unmarshal(raw, f)
	},
}

// FromJSON reconstructs the concrete snapshot variant from a
// serialized payload. Unknown tags fall back to the base variant. A
// payload missing required base keys is rejected.
func FromJSON(raw []byte) (Snapshot, error) {
	var probe struct {
		Code     string `json:"_code"`
		DriveID  string `json:"drive_id"`
		Title    string `json:"title"`
		MimeType string `json:"mimeType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorIncorrectSnapshot, err)
	}
	for name, v := range map[string]string{"drive_id": probe.DriveID, "title": probe.Title, "mimeType": probe.MimeType} {
		if v == "" {
			return nil, fmt.Errorf("%w: missing %q", common.ErrorIncorrectSnapshot, name)
		}
	}

	build, ok := fromJSONTable[probe.Code]
	if !ok {
		f := &DriveFile{}
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorIncorrectSnapshot, err)
		}
		return f, nil
	}

	s, err := build(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorIncorrectSnapshot, err)
	}
	return s, nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
