package apk

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/webp"
)

// StandardIconSize is the edge length icons are normalized to for display.
const StandardIconSize = 144

// IconExtractor pulls the launcher icon out of an APK archive and normalizes
// it to a PNG of StandardIconSize.
type IconExtractor struct {
	targetSize uint
}

// NewIconExtractor creates an icon extractor with the standard target size.
func NewIconExtractor() *IconExtractor {
	return &IconExtractor{targetSize: StandardIconSize}
}

// Icon resource paths tried in order, densest first.
var iconPriorities = []string{
	"res/mipmap-xxxhdpi/ic_launcher.png",
	"res/mipmap-xxhdpi/ic_launcher.png",
	"res/mipmap-xhdpi/ic_launcher.png",
	"res/mipmap-hdpi/ic_launcher.png",
	"res/drawable-xxxhdpi/ic_launcher.png",
	"res/drawable-xxhdpi/ic_launcher.png",
	"res/drawable-xhdpi/ic_launcher.png",
	"res/drawable-hdpi/ic_launcher.png",
	"res/mipmap-xxxhdpi/ic_launcher.webp",
	"res/mipmap-xxhdpi/ic_launcher.webp",
	"res/mipmap-xhdpi/ic_launcher.webp",
	"res/mipmap-hdpi/ic_launcher.webp",
}

// ExtractIcon returns the normalized icon bytes and their file extension.
func (e *IconExtractor) ExtractIcon(apkPath string) ([]byte, string, error) {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open APK: %w", err)
	}
	defer reader.Close()

	byName := make(map[string]*zip.File, len(reader.File))
	for _, file := range reader.File {
		byName[file.Name] = file
	}

	for _, iconPath := range iconPriorities {
		file, ok := byName[iconPath]
		if !ok {
			continue
		}
		data, err := readZipEntry(file)
		if err != nil {
			continue
		}
		return e.processIcon(data, filepath.Ext(iconPath))
	}

	// No standard path matched; take any launcher icon that is not an
	// adaptive-icon layer.
	for _, file := range reader.File {
		name := file.Name
		if !strings.Contains(name, "ic_launcher") {
			continue
		}
		if !strings.HasSuffix(name, ".png") && !strings.HasSuffix(name, ".webp") {
			continue
		}
		if strings.Contains(name, "_foreground") || strings.Contains(name, "_background") {
			continue
		}
		data, err := readZipEntry(file)
		if err != nil {
			continue
		}
		return e.processIcon(data, filepath.Ext(name))
	}

	return nil, "", fmt.Errorf("no launcher icon found in APK")
}

func readZipEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// processIcon decodes, resizes to the target edge and re-encodes as PNG.
func (e *IconExtractor) processIcon(data []byte, ext string) ([]byte, string, error) {
	var img image.Image
	var err error

	switch strings.ToLower(ext) {
	case ".webp":
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode icon: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != int(e.targetSize) || bounds.Dy() != int(e.targetSize) {
		img = resize.Resize(e.targetSize, e.targetSize, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to encode icon: %w", err)
	}
	return buf.Bytes(), ".png", nil
}
