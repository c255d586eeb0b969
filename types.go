package main

import (
	"database/sql/driver"
	"fmt"

	"github.com/aktagon/copostr/migrations"
)

// ImageRecord represents one row of the image index
type ImageRecord struct {
	ID        uint64
	Title     string
	SourceURL string
	ImageURL  string
	Licence   Licence
	Status    Status
}

// Status is the persisted posting state of an image record.
// The ordinals are owned by the index schema.
type Status uint8

const (
	StatusUnposted      Status = migrations.StatusUnposted
	StatusSuccess       Status = migrations.StatusSuccess
	StatusDownloadFail  Status = migrations.StatusDownloadFail
	StatusImageTooLarge Status = migrations.StatusImageTooLarge
	StatusPostFail      Status = migrations.StatusPostFail
)

var statusNames = map[Status]string{
	StatusUnposted:      "unposted",
	StatusSuccess:       "success",
	StatusDownloadFail:  "download_fail",
	StatusImageTooLarge: "image_too_large",
	StatusPostFail:      "post_fail",
}

// AllStatuses lists every status in ordinal order
var AllStatuses = []Status{
	StatusUnposted,
	StatusSuccess,
	StatusDownloadFail,
	StatusImageTooLarge,
	StatusPostFail,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus returns the status with the given name
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Value implements driver.Valuer
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return int64(s), nil
}

// Scan implements sql.Scanner
func (s *Status) Scan(src any) error {
	var n int64
	switch v := src.(type) {
	case int64:
		n = v
	case nil:
		return fmt.Errorf("status is NULL")
	default:
		return fmt.Errorf("unsupported status type %T", src)
	}

	st := Status(n)
	if n < 0 || n > 255 || !st.Valid() {
		return fmt.Errorf("invalid status %d", n)
	}
	*s = st
	return nil
}

// Licence is a normalized image licence kind
type Licence int

const (
	LicenceUnknown Licence = iota
	LicenceAllRightsReserved
	LicenceCCBYSANC
	LicenceCCBYNC
	LicenceCCBYNCND
	LicenceCCBY
	LicenceCCBYSA
	LicenceCCBYND
	LicenceNoKnownRestrictions
	LicenceUSGov
	LicenceCC0
	LicencePublicDomain
)

// Licence names as reported by Flickr
var licencesBySource = map[string]Licence{
	"All Rights Reserved":                          LicenceAllRightsReserved,
	"Attribution-NonCommercial-ShareAlike License": LicenceCCBYSANC,
	"Attribution-NonCommercial License":            LicenceCCBYNC,
	"Attribution-NonCommercial-NoDerivs License":   LicenceCCBYNCND,
	"Attribution License":                          LicenceCCBY,
	"Attribution-ShareAlike License":               LicenceCCBYSA,
	"Attribution-NoDerivs License":                 LicenceCCBYND,
	"No known copyright restrictions":              LicenceNoKnownRestrictions,
	"United States Government Work":                LicenceUSGov,
	"Public Domain Dedication (CC0)":               LicenceCC0,
	"Public Domain Mark":                           LicencePublicDomain,
}

var licenceLabels = map[Licence]string{
	LicenceAllRightsReserved:   "All Rights Reserved",
	LicenceCCBYSANC:            "Creative Commons BY-SA-NC",
	LicenceCCBYNC:              "Creative Commons BY-NC",
	LicenceCCBYNCND:            "Creative Commons BY-NC-ND",
	LicenceCCBY:                "Creative Commons BY",
	LicenceCCBYSA:              "Creative Commons BY-SA",
	LicenceCCBYND:              "Creative Commons BY-ND",
	LicenceNoKnownRestrictions: "No known copyright restrictions",
	LicenceUSGov:               "U.S. Government Work",
	LicenceCC0:                 "Creative Commons 0",
	LicencePublicDomain:        "Public Domain",
	LicenceUnknown:             "Unknown Licence",
}

// ParseLicence maps a licence name to its kind. Matching is exact and
// case-sensitive; anything unrecognized is LicenceUnknown.
func ParseLicence(text string) Licence {
	if l, ok := licencesBySource[text]; ok {
		return l
	}
	return LicenceUnknown
}

// String returns the display label of the licence
func (l Licence) String() string {
	if label, ok := licenceLabels[l]; ok {
		return label
	}
	return licenceLabels[LicenceUnknown]
}

// Attachment is a file attached to a post
type Attachment struct {
	Data        []byte
	Filename    string
	ContentType string
	AltText     string
}

// Post is the payload submitted to the posting gateway
type Post struct {
	Headline    string
	Markdown    string
	Attachments []Attachment
	Tags        []string
}

// RunResult tracks the outcome of one pipeline run
type RunResult struct {
	ImageID uint64
	Title   string
	Status  Status
	PostID  string
	DryRun  bool
}
