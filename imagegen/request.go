package imagegen

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/snse/outfit"
)

// MinImageLen is the shortest data string accepted as an image; anything
// shorter is treated as corrupt.
const MinImageLen = 100

// DefaultMIMEType is used when a data URL does not declare an image type.
const DefaultMIMEType = "image/jpeg"

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type candidate struct {
	name  string
	image string
}

// candidates lists the request images in send order: likeness, top,
// bottom, shoes. Empty slots have an empty image.
func candidates(sel outfit.Selection, p outfit.Profile) []candidate {
	img := func(it *outfit.Item) string {
		if it == nil {
			return ""
		}
		return it.Image
	}
	return []candidate{
		{"likeness", p.Likeness},
		{"top", img(sel.Top)},
		{"bottom", img(sel.Bottom)},
		{"shoes", img(sel.Shoes)},
	}
}

// validImages applies the per-candidate checks and returns the surviving
// images in order. Each candidate is judged on its own.
func validImages(cands []candidate, logger *slog.Logger) []string {
	var out []string
	for _, c := range cands {
		switch {
		case c.image == "":
			logger.Warn("imagegen: image missing", "slot", c.name)
			continue
		case len(c.image) < MinImageLen:
			logger.Error("imagegen: image looks corrupt (too short)", "slot", c.name, "length", len(c.image))
			continue
		case !strings.HasPrefix(c.image, "data:image"):
			logger.Warn("imagegen: image lacks data:image header", "slot", c.name)
		}
		out = append(out, c.image)
	}
	return out
}

// inlinePart splits an image data URL into its media type and base64
// payload. Anything else, a non-image data URL included, is sent whole as
// DefaultMIMEType.
func inlinePart(s string) part {
	mt, data := DefaultMIMEType, s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		declared, enc, _ := strings.Cut(header, ";")
		if found && enc == "base64" && len(declared) > len("image/") && strings.HasPrefix(declared, "image/") {
			mt, data = declared, payload
		}
	}
	return part{InlineData: &inlineData{MimeType: mt, Data: data}}
}

// Prompt builds the instruction text from the profile.
func Prompt(p outfit.Profile) string {
	return fmt.Sprintf(`Generate a photorealistic 8k fashion photo.
Subject: %s year old %s %s.
Body: %s, %s.
Fit Preference: %s.
Wearing the items in the reference images. return ONLY image file inline`,
		p.AgeOrDefault(), p.Ethnicity, p.Gender, p.Height, p.BodyType, p.Fit)
}

func buildRequest(prompt string, images []string) generateRequest {
	parts := make([]part, 0, len(images)+1)
	parts = append(parts, part{Text: prompt})
	for _, img := range images {
		parts = append(parts, inlinePart(img))
	}
	return generateRequest{Contents: []content{{Parts: parts}}}
}
