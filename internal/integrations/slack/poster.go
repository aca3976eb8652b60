package slackbot

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/slack-go/slack"
)

// maxSectionText stays under Slack's 3000 character limit per section block.
const maxSectionText = 2900

type DigestMessage struct {
	Title     string
	Narrative string
	Lines     []string // one summary line per use case
	FilePath  string
}

// PostDigest posts msg to channelID as a block message and returns the
// message timestamp.
func PostDigest(api *slack.Client, channelID string, msg DigestMessage) (string, error) {
	blocks := buildDigestBlocks(msg)
	_, ts, err := api.PostMessage(channelID,
		slack.MsgOptionText(msg.Title, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		log.Printf("digest post error channel=%s: %v", channelID, err)
		return "", fmt.Errorf("post digest: %w", err)
	}
	log.Printf("digest posted channel=%s ts=%s blocks=%d", channelID, ts, len(blocks))
	return ts, nil
}

func buildDigestBlocks(msg DigestMessage) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, msg.Title, false, false)),
	}
	if strings.TrimSpace(msg.Narrative) != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "_"+strings.TrimSpace(msg.Narrative)+"_", false, false), nil, nil))
	}
	for _, chunk := range chunkLines(msg.Lines, maxSectionText) {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false), nil, nil))
	}
	if msg.FilePath != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("Saved to: `%s`", msg.FilePath), false, false)))
	}
	return blocks
}

// truncate cuts s to at most limit bytes on a rune boundary, ending in "...".
func truncate(s string, limit int) string {
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// chunkLines joins lines with newlines into chunks no longer than limit.
// A single line longer than limit is truncated.
func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	for _, line := range lines {
		if len(line) > limit {
			line = truncate(line, limit)
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
