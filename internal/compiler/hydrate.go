package compiler

import "github.com/abhisek/coursewell/internal/lesson"

// Uploads are media URLs in the order the author attached them.
type Uploads struct {
	Images []string
	Audio  []string
}

func (u Uploads) of(t lesson.MediaType) []string {
	switch t {
	case lesson.MediaImage:
		return u.Images
	case lesson.MediaAudio:
		return u.Audio
	}
	return nil
}

// Hydrate fills MEDIA step URLs. Uploads are consumed in the order the
// author attached them, separately per media type: the k-th image fills
// the k-th image slot, and likewise for audio.
//
// When previous is non-empty and the uploads of a type do not cover every
// slot of that type, slots first keep the URL of a previous MEDIA step
// with the same type and alt text (each previous URL is used at most
// once); the remaining slots then take the uploads positionally. Slots
// left over keep a nil URL.
func Hydrate(seq lesson.Sequence, uploads Uploads, previous lesson.Sequence) lesson.Sequence {
	out := make(lesson.Sequence, len(seq))
	copy(out, seq)
	prev := make(lesson.Sequence, len(previous))
	copy(prev, previous)

	for _, t := range []lesson.MediaType{lesson.MediaImage, lesson.MediaAudio} {
		slots := out.MediaIndexes(t)
		files := uploads.of(t)

		filled := make(map[int]bool, len(slots))
		if len(files) < len(slots) {
			for _, i := range slots {
				if url, ok := takePrevious(prev, t, out[i].AltText); ok {
					out[i] = out[i].WithURL(url)
					filled[i] = true
				}
			}
		}

		next := 0
		for _, i := range slots {
			if filled[i] {
				continue
			}
			if next < len(files) {
				out[i] = out[i].WithURL(files[next])
				next++
				continue
			}
			out[i].MediaURL = nil
		}
	}
	return out
}

// takePrevious returns and consumes the URL of the first unused previous
// step of type t with the given alt text.
func takePrevious(previous lesson.Sequence, t lesson.MediaType, alt string) (string, bool) {
	for j := range previous {
		p := &previous[j]
		if p.Type != lesson.KindMedia || p.MediaType != t || p.MediaURL == nil || p.AltText != alt {
			continue
		}
		url := *p.MediaURL
		p.MediaURL = nil
		return url, true
	}
	return "", false
}
