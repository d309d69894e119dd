package models

import "encoding/base64"

// IllustrationStatus distinguishes an illustration that was never asked for from one that was
// asked for and failed.
type IllustrationStatus string

const (
	IllustrationNotAttempted IllustrationStatus = "not_attempted"
	IllustrationPresent      IllustrationStatus = "present"
	IllustrationAbsent       IllustrationStatus = "absent"
)

// Illustration is the outcome of one illustration step. Image holds base64 data and is only set
// when Status is present; Ref is a weak key into the blob store.
type Illustration struct {
	Status   IllustrationStatus `json:"status" bson:"status"`
	Image    *string            `json:"image" bson:"image"`
	MIMEType string             `json:"mime_type,omitempty" bson:"mime_type,omitempty"`
	Ref      *string            `json:"ref" bson:"ref"`
	Reason   string             `json:"reason,omitempty" bson:"reason,omitempty"`
}

// ImageResult is what an illustration generator hands back: either image bytes or the reason
// there are none.
type ImageResult struct {
	Data     []byte
	MIMEType string
	Reason   string
}

// Present reports whether the result carries an image.
func (r ImageResult) Present() bool {
	return len(r.Data) > 0
}

func NotAttemptedIllustration() Illustration {
	return Illustration{Status: IllustrationNotAttempted}
}

// PresentIllustration builds a present illustration. An empty ref leaves Ref nil.
func PresentIllustration(data []byte, mimeType, ref string) Illustration {
	encoded := base64.StdEncoding.EncodeToString(data)
	ill := Illustration{
		Status:   IllustrationPresent,
		Image:    &encoded,
		MIMEType: mimeType,
	}
	if ref != "" {
		ill.Ref = &ref
	}
	return ill
}

func AbsentIllustration(reason string) Illustration {
	return Illustration{Status: IllustrationAbsent, Reason: reason}
}

// HasImage reports whether the illustration can be resolved to bytes, inline or by reference.
func (i Illustration) HasImage() bool {
	return (i.Image != nil && *i.Image != "") || (i.Ref != nil && *i.Ref != "")
}

func (i *Illustration) normalize() {
	if i.Status != "" {
		return
	}
	if i.HasImage() {
		i.Status = IllustrationPresent
		return
	}
	i.Status = IllustrationNotAttempted
}
