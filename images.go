package chainnet

import (
	"errors"
	"fmt"
)

// ErrUnknownRegion is returned when no image is known for a region
var ErrUnknownRegion = errors.New("no image for region")

// DefaultImages maps regions to Debian 8.7 (jessie) images
var DefaultImages = map[string]string{
	"ap-northeast-1": "ami-dbc0bcbc",
	"ap-northeast-2": "ami-6d8b5a03",
	"ap-south-1":     "ami-9a83f5f5",
	"ap-southeast-1": "ami-0842e96b",
	"ap-southeast-2": "ami-881317eb",
	"ca-central-1":   "ami-a1fe43c5",
	"eu-central-1":   "ami-5900cc36",
	"eu-west-1":      "ami-402f1a33",
	"eu-west-2":      "ami-87848ee3",
	"sa-east-1":      "ami-b256ccde",
	"us-east-1":      "ami-b14ba7a7",
	"us-east-2":      "ami-b2795cd7",
	"us-west-1":      "ami-94bdeef4",
	"us-west-2":      "ami-221ea342",
}

// Image returns the image for region. overrides take precedence over
// DefaultImages.
func Image(region string, overrides map[string]string) (string, error) {
	if image, ok := overrides[region]; ok && image != "" {
		return image, nil
	}
	if image, ok := DefaultImages[region]; ok {
		return image, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRegion, region)
}
