package annotate

import (
	"fmt"
	"time"

	"github.com/scoopguard/violation-pipeline/internal/model"
)

// Persister wires the Annotator, the two JPEG re-encodes, and a Storage
// adapter into the single "on violation emission" step spec.md §4.6
// describes.
type Persister struct {
	annotator *Annotator
	storage   Storage
}

// NewPersister constructs a Persister over the given Storage.
func NewPersister(storage Storage) *Persister {
	return &Persister{annotator: NewAnnotator(), storage: storage}
}

// Outcome is the result of persisting one violation's annotated frame.
type Outcome struct {
	FilePath  string
	InlineJPEG []byte
}

// Persist decodes entryJPEG, draws the evidence overlays, writes the
// quality-85 file copy plus its JSON sidecar, and returns the
// quality-70 resized inline copy for the Violation Store POST body.
func (p *Persister) Persist(sessionID string, entryJPEG []byte, ev model.ViolationEvent, roi model.ROI) (Outcome, error) {
	timestampLabel := ev.CreatedAt.UTC().Format(time.RFC3339)

	img, err := p.annotator.Annotate(entryJPEG, ev, roi, timestampLabel)
	if err != nil {
		return Outcome{}, err
	}
	defer img.Close()

	fileBytes, err := EncodeFileCopy(img)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode file copy: %w", err)
	}
	inlineBytes, err := EncodeInlineCopy(img)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode inline copy: %w", err)
	}

	path, err := p.storage.WriteFile(sessionID, ev.FrameID, ev.CreatedAt, fileBytes)
	if err != nil {
		return Outcome{}, fmt.Errorf("write violation frame: %w", err)
	}

	record := ToRecord(sessionID, path, ev)
	if err := p.storage.WriteRecord(path, record); err != nil {
		return Outcome{}, fmt.Errorf("write evidence sidecar: %w", err)
	}

	return Outcome{FilePath: path, InlineJPEG: inlineBytes}, nil
}
