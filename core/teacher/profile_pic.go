package teacher

import (
	"image"
	_ "image/gif" // register decoders
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/trezcool/gradebook/core"
)

const (
	ProfilePicContentType = "image/webp"
	profilePicQuality     = 82
)

var errInvalidImage = core.NewFieldError("file", "unsupported or corrupted image")

// EncodeProfilePic decodes img, crops it to a centered size x size square and writes it to w as WebP.
func EncodeProfilePic(w io.Writer, img io.Reader, size int) error {
	src, err := imaging.Decode(img, imaging.AutoOrientation(true))
	if err != nil {
		return errInvalidImage
	}
	if size <= 0 {
		size = 256
	}
	var dst image.Image = imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)
	return webp.Encode(w, dst, &webp.Options{Quality: profilePicQuality})
}
