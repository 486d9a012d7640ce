// Package media validates uploads, reads audio tags and keeps blobs in storage.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// ErrUnsupportedFormat is returned by Probe for formats without a tag reader.
var ErrUnsupportedFormat = errors.New("no tag reader for format")

// Metadata is what the audio tags tell us about a track.
type Metadata struct {
	Format          string
	Title           string
	Artist          string
	Album           string
	Genre           string
	DurationSeconds int
	// Picture is the embedded front cover, if any.
	Picture     []byte
	PictureMIME string
}

// Probe reads tags from r. ext selects the reader (".mp3" or ".flac").
func Probe(r io.Reader, ext string) (*Metadata, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return probeMP3(r)
	case ".flac":
		return probeFLAC(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func probeMP3(r io.Reader) (*Metadata, error) {
	tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("failed to parse id3 tag: %w", err)
	}

	md := &Metadata{
		Format: "mp3",
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Album:  strings.TrimSpace(tag.Album()),
		Genre:  cleanID3Genre(tag.Genre()),
	}

	// TLEN holds the length in milliseconds.
	if tf := tag.GetTextFrame(tag.CommonID("Length")); tf.Text != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(tf.Text)); err == nil && ms > 0 {
			md.DurationSeconds = (ms + 500) / 1000
		}
	}

	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := f.(id3v2.PictureFrame)
		if !ok || len(pic.Picture) == 0 {
			continue
		}
		md.Picture = pic.Picture
		md.PictureMIME = pic.MimeType
		if pic.PictureType == id3v2.PTFrontCover {
			break
		}
	}
	return md, nil
}

// cleanID3Genre turns ID3v1 style "(17)Rock" or "(17)" into a readable genre.
func cleanID3Genre(g string) string {
	g = strings.TrimSpace(g)
	if strings.HasPrefix(g, "(") {
		if end := strings.Index(g, ")"); end > 0 {
			rest := strings.TrimSpace(g[end+1:])
			if rest != "" {
				return rest
			}
			if n, err := strconv.Atoi(g[1:end]); err == nil {
				if name, ok := id3v1Genres[n]; ok {
					return name
				}
			}
			return ""
		}
	}
	return g
}

var id3v1Genres = map[int]string{
	0: "Blues", 1: "Classic Rock", 2: "Country", 3: "Dance", 4: "Disco", 5: "Funk",
	6: "Grunge", 7: "Hip-Hop", 8: "Jazz", 9: "Metal", 10: "New Age", 11: "Oldies",
	12: "Other", 13: "Pop", 14: "R&B", 15: "Rap", 16: "Reggae", 17: "Rock",
	18: "Techno", 19: "Industrial", 20: "Alternative", 21: "Ska", 22: "Death Metal",
	24: "Soundtrack", 26: "Ambient", 28: "Vocal", 32: "Classical", 33: "Instrumental",
	52: "Electronic", 80: "Folk", 98: "Easy Listening", 131: "Indie",
}

func probeFLAC(r io.Reader) (*Metadata, error) {
	f, err := flac.ParseMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac metadata: %w", err)
	}

	md := &Metadata{Format: "flac"}
	if info, err := f.GetStreamInfo(); err == nil && info.SampleRate > 0 && info.SampleCount > 0 {
		secs := float64(info.SampleCount) / float64(info.SampleRate)
		md.DurationSeconds = int(secs + 0.5)
	}

	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			md.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
			md.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST)
			md.Album = firstComment(cmt, flacvorbis.FIELD_ALBUM)
			md.Genre = firstComment(cmt, flacvorbis.FIELD_GENRE)
		case flac.Picture:
			if md.Picture != nil {
				continue
			}
			pic, err := flacpicture.ParseFromMetaDataBlock(*block)
			if err != nil || len(pic.ImageData) == 0 {
				continue
			}
			md.Picture = pic.ImageData
			md.PictureMIME = pic.MIME
		}
	}
	return md, nil
}

func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// IsFLAC reports whether head starts with the FLAC stream marker.
func IsFLAC(head []byte) bool {
	return bytes.HasPrefix(head, []byte("fLaC"))
}
