package formats

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/transtools/doctrans/internal/document"
)

// srtTimeLine matches "00:02:16,612 --> 00:02:19,376".
var srtTimeLine = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}`)

// SrtFormat parses SubRip subtitles. Each cue becomes a "cue:N" branch with
// opaque "index" and "time" leaves plus a translatable "text" leaf.
type SrtFormat struct{}

func NewSrtFormat() *SrtFormat {
	return &SrtFormat{}
}

func (f *SrtFormat) Name() string {
	return "srt"
}

func (f *SrtFormat) Extensions() []string {
	return []string{".srt"}
}

func (f *SrtFormat) Parse(r io.Reader) (*document.Tree, error) {
	tree := document.NewTree(f.Name())
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	state := "index" // "index", "time", "text"
	var cueIndex, cueNumber int
	var timeLine string
	var textLines []string

	flush := func() {
		if len(textLines) == 0 {
			return
		}
		cue := tree.Root().AddChild(fmt.Sprintf("cue:%d", cueIndex))
		idx := cue.AddChild("index")
		idx.Text = strconv.Itoa(cueNumber)
		idx.Opaque = true
		tm := cue.AddChild("time")
		tm.Text = timeLine
		tm.Opaque = true
		text := cue.AddChild("text")
		text.Text = strings.Join(textLines, "\n")
		cueIndex++
		textLines = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case "index":
			if line == "" {
				continue
			}
			n, err := strconv.Atoi(line)
			if err != nil {
				// tolerate stray non-index lines between cues
				continue
			}
			cueNumber = n
			state = "time"

		case "time":
			if line == "" {
				continue
			}
			if !srtTimeLine.MatchString(line) {
				return nil, fmt.Errorf("invalid SRT time line: %q", line)
			}
			timeLine = line
			state = "text"
			textLines = nil

		case "text":
			if line == "" {
				flush()
				state = "index"
			} else {
				textLines = append(textLines, line)
			}
		}
	}
	if state == "text" {
		flush()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	return tree, nil
}

func (f *SrtFormat) Commit(tree *document.Tree, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, cue := range tree.Root().Children {
		var index, timeLine, text string
		for _, child := range cue.Children {
			switch child.Name {
			case "index":
				index = child.Text
			case "time":
				timeLine = child.Text
			case "text":
				text = child.Text
			}
		}
		if _, err := fmt.Fprintf(bw, "%s\n%s\n%s\n\n", index, timeLine, text); err != nil {
			return fmt.Errorf("failed to write subtitle file: %w", err)
		}
	}
	return bw.Flush()
}

var _ document.Format = (*SrtFormat)(nil)
