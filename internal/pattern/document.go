package pattern

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/graph"
	"github.com/cbegin/pigeon-go/internal/pitch"
	"github.com/cbegin/pigeon-go/internal/stroke"
)

// Document is the exchanged and persisted form of a composition.
//
//	{"settings": {"bpm": "120", "loop": true, "scale": "pentatonic", "harmonize": false},
//	 "tracks": [{"segments": [...], "vol": 0.8, "mute": false, "wave": "sine", "snap": false}]}
//
// Decoding also accepts the legacy shape where tracks (or the whole document)
// is a bare array of per-track stroke arrays. Absent fields are nil so that
// Apply can leave the current values alone. A field, track or stroke of the
// wrong type decodes as absent; only text that is not JSON at all fails.
type Document struct {
	Settings *DocSettings `json:"settings,omitempty"`
	Tracks   []DocTrack   `json:"tracks"`
}

// DocSettings are the transport settings of a Document.
type DocSettings struct {
	BPM       *BPM   `json:"bpm,omitempty"`
	Loop      *bool  `json:"loop,omitempty"`
	Scale     string `json:"scale,omitempty"`
	Harmonize *bool  `json:"harmonize,omitempty"`
}

// DocTrack is one track of a Document.
type DocTrack struct {
	Segments []*stroke.Stroke `json:"segments"`
	Vol      *float64         `json:"vol,omitempty"`
	Mute     *bool            `json:"mute,omitempty"`
	Wave     string           `json:"wave,omitempty"`
	Snap     *bool            `json:"snap,omitempty"`
}

// BPM is a tempo that decodes from either a JSON number or a numeric string
// and encodes as a string, the way the tempo field stores it.
type BPM float64

// MarshalJSON encodes b as a decimal string.
func (b BPM) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(b), 'f', -1, 64))
}

// UnmarshalJSON accepts 96, 96.5, "96" and " 96 ". Anything unusable decodes
// as DefaultBPM.
func (b *BPM) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*b = BPM(ParseBPM(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*b = DefaultBPM
		return nil
	}
	*b = BPM(SanitizeBPM(f))
	return nil
}

// UnmarshalJSON reads the settings and tracks separately so a damaged part
// does not discard the rest. Tracks that cannot be read are kept as empty
// entries to preserve track positions.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Document{}
	if msg, ok := raw["settings"]; ok && !isNull(msg) {
		var s DocSettings
		if err := json.Unmarshal(msg, &s); err != nil {
			debug.Log("pattern", "ignoring settings: %v", err)
		} else {
			d.Settings = &s
		}
	}
	if msg, ok := raw["tracks"]; ok {
		tracks, err := decodeTracks(msg)
		if err != nil {
			debug.Log("pattern", "ignoring tracks: %v", err)
		}
		d.Tracks = tracks
	}
	return nil
}

// UnmarshalJSON reads each setting on its own. A mistyped setting is left
// absent.
func (s *DocSettings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = DocSettings{}
	field(raw, "bpm", &s.BPM)
	field(raw, "loop", &s.Loop)
	field(raw, "scale", &s.Scale)
	field(raw, "harmonize", &s.Harmonize)
	return nil
}

// UnmarshalJSON accepts a track object or a legacy bare stroke array. A
// mistyped field is left absent.
func (t *DocTrack) UnmarshalJSON(data []byte) error {
	*t = DocTrack{}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		segs, err := decodeSegments(data)
		if err != nil {
			return err
		}
		t.Segments = segs
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if msg, ok := raw["segments"]; ok {
		segs, err := decodeSegments(msg)
		if err != nil {
			debug.Log("pattern", "ignoring segments: %v", err)
		}
		t.Segments = segs
	}
	field(raw, "vol", &t.Vol)
	field(raw, "mute", &t.Mute)
	field(raw, "wave", &t.Wave)
	field(raw, "snap", &t.Snap)
	return nil
}

// field decodes raw[key] into dst. dst is untouched when the key is missing
// or holds the wrong type.
func field[T any](raw map[string]json.RawMessage, key string, dst *T) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		debug.Log("pattern", "ignoring %s: %v", key, err)
		return
	}
	*dst = v
}

func decodeTracks(data []byte) ([]DocTrack, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, nil
	}
	tracks := make([]DocTrack, len(entries))
	for i, msg := range entries {
		if err := json.Unmarshal(msg, &tracks[i]); err != nil {
			debug.Log("pattern", "ignoring track %d: %v", i+1, err)
			tracks[i] = DocTrack{}
		}
	}
	return tracks, nil
}

// decodeSegments reads a stroke array, dropping strokes that cannot be read.
func decodeSegments(data []byte) ([]*stroke.Stroke, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		return nil, nil
	}
	segs := make([]*stroke.Stroke, 0, len(entries))
	for i, msg := range entries {
		var st stroke.Stroke
		if err := json.Unmarshal(msg, &st); err != nil {
			debug.Log("pattern", "ignoring stroke %d: %v", i+1, err)
			continue
		}
		segs = append(segs, &st)
	}
	return segs, nil
}

func isNull(msg json.RawMessage) bool {
	return string(bytes.TrimSpace(msg)) == "null"
}

// NewDocument snapshots c.
func NewDocument(c *Composition) Document {
	bpm := BPM(SanitizeBPM(c.Settings.BPM))
	loop, harmonize := c.Settings.Loop, c.Settings.Harmonize
	doc := Document{
		Settings: &DocSettings{BPM: &bpm, Loop: &loop, Scale: string(c.Settings.Scale), Harmonize: &harmonize},
		Tracks:   make([]DocTrack, len(c.Tracks)),
	}
	for i := range c.Tracks {
		tr := c.Tracks[i].Clone()
		vol, mute, snap := tr.Volume, tr.Muted, tr.Snap
		segs := tr.Strokes
		if segs == nil {
			segs = []*stroke.Stroke{}
		}
		doc.Tracks[i] = DocTrack{Segments: segs, Vol: &vol, Mute: &mute, Wave: tr.Wave, Snap: &snap}
	}
	return doc
}

// Decode parses a document in either shape.
func Decode(data []byte) (Document, error) {
	var doc Document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, fault.New("empty pattern document",
			fmsg.WithDesc("empty pattern document", "The pattern file is empty."),
			ftag.With(ftag.InvalidArgument))
	}
	if trimmed[0] == '[' {
		tracks, err := decodeTracks(trimmed)
		if err != nil {
			return doc, invalid(err)
		}
		doc.Tracks = tracks
		return doc, nil
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, invalid(err)
	}
	return doc, nil
}

func invalid(err error) error {
	return fault.Wrap(err,
		fmsg.WithDesc("decode pattern document", "The pattern file could not be read."),
		ftag.With(ftag.InvalidArgument))
}

// Export encodes c as a Document.
func Export(c *Composition) ([]byte, error) {
	data, err := json.Marshal(NewDocument(c))
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("encode pattern document"), ftag.With(ftag.Internal))
	}
	return data, nil
}

// Import decodes data and applies it to c. On error c is left unchanged.
func Import(data []byte, c *Composition) error {
	doc, err := Decode(data)
	if err != nil {
		return err
	}
	doc.Apply(c)
	return nil
}

// Apply writes the document into c. Settings absent from the document keep
// their current values; each track present in the document has its strokes
// and mix fields replaced where given. Tracks beyond len(c.Tracks)
// are ignored.
func (d Document) Apply(c *Composition) {
	if s := d.Settings; s != nil {
		if s.BPM != nil {
			c.Settings.BPM = SanitizeBPM(float64(*s.BPM))
		}
		if s.Loop != nil {
			c.Settings.Loop = *s.Loop
		}
		if s.Scale != "" {
			c.Settings.Scale = pitch.ParseScale(s.Scale)
		}
		if s.Harmonize != nil {
			c.Settings.Harmonize = *s.Harmonize
		}
	}
	for i, dt := range d.Tracks {
		if i >= len(c.Tracks) {
			break
		}
		tr := &c.Tracks[i]
		if dt.Segments != nil {
			tr.Strokes = sanitizeStrokes(dt.Segments)
		}
		if dt.Vol != nil && !math.IsNaN(*dt.Vol) {
			tr.Volume = math.Max(0, math.Min(1, *dt.Vol))
		}
		if dt.Mute != nil {
			tr.Muted = *dt.Mute
		}
		if dt.Wave != "" {
			tr.Wave = graph.ParseWaveform(dt.Wave).String()
		}
		if dt.Snap != nil {
			tr.Snap = *dt.Snap
		}
	}
}

// Composition builds a fresh composition of n tracks from the document.
func (d Document) Composition(n int) *Composition {
	c := NewComposition(n)
	d.Apply(c)
	return c
}

func sanitizeStrokes(in []*stroke.Stroke) []*stroke.Stroke {
	out := make([]*stroke.Stroke, 0, len(in))
	for _, s := range in {
		if s == nil || len(s.Points) == 0 {
			continue
		}
		n := stroke.New(stroke.ParseBrush(string(s.Brush)), s.Thickness, s.Chord, s.Points[0])
		for _, p := range s.Points[1:] {
			n.Append(p)
		}
		out = append(out, n)
	}
	return out
}
