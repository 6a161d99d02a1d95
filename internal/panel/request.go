package panel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/artifacts"
	"github.com/ChinmaySri22/ProtoEase-Easy-Prototype-Generator/internal/rpc"
)

// ErrInvalidRequest marks a form the panel refuses to save.
var ErrInvalidRequest = errors.New("invalid request")

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{3})$`)

// Extra features offered by the form. "None" adds nothing.
var ExtraFeatures = []string{"None", "Due dates", "Priority tags", "Reorder by drag"}

// ComposeRequest joins the form fields into a single request line.
func ComposeRequest(form rpc.RequestForm) (string, error) {
	base := strings.TrimSpace(form.Request)
	if base == "" {
		return "", fmt.Errorf("%w: product request is required", ErrInvalidRequest)
	}
	accent := strings.TrimSpace(form.AccentColor)
	if accent != "" && !hexColor.MatchString(accent) {
		return "", fmt.Errorf("%w: accent color must be a hex code like #4F46E5", ErrInvalidRequest)
	}

	parts := []string{base}
	if name := strings.TrimSpace(form.AppName); name != "" {
		parts = append(parts, "App name: "+name+".")
	}
	if accent != "" {
		parts = append(parts, "Accent color: "+accent+".")
	}
	if extra := strings.TrimSpace(form.ExtraFeature); extra != "" && !strings.EqualFold(extra, "none") {
		parts = append(parts, "Extra feature: "+extra+".")
	}
	if tone := strings.TrimSpace(form.Tone); tone != "" {
		parts = append(parts, "Tone: "+tone+".")
	}
	return strings.Join(parts, " "), nil
}

// RequestStore keeps the saved request in a flat file. Each save backs the
// previous value up into the output directory.
type RequestStore struct {
	path     string
	fallback string
	backups  *artifacts.Writer
	now      func() time.Time
}

// NewRequestStore returns a store at path. fallback is served until the
// first save.
func NewRequestStore(path, fallback string, backups *artifacts.Writer) *RequestStore {
	return &RequestStore{path: path, fallback: fallback, backups: backups, now: time.Now}
}

// Load returns the saved request, or the fallback when nothing was saved yet.
func (s *RequestStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read request file: %w", err)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return text, nil
	}
	return s.fallback, nil
}

// Save replaces the saved request and returns the backup name, if any.
func (s *RequestStore) Save(text string) (string, error) {
	var backup string
	prev, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read request file: %w", err)
	}
	if strings.TrimSpace(string(prev)) != "" && s.backups != nil {
		backup = "user_product_request_" + s.now().Format("20060102_150405") + ".txt"
		if err := s.backups.Write(backup, prev); err != nil {
			return "", fmt.Errorf("backup request: %w", err)
		}
	}
	if err := artifacts.WriteAtomic(s.path, []byte(text)); err != nil {
		return "", fmt.Errorf("save request: %w", err)
	}
	return backup, nil
}
