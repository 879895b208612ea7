package alerts

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/obsidianstack/licensewatch/pkg/types"
)

const (
	relativeToken  = "#relative"
	absoluteToken  = "#absolute"
	linkStartToken = "#start_link"
	linkEndToken   = "#end_link"

	actionText      = "Please update your license."
	defaultLinkURL  = "license"
	nodesActionPath = "elasticsearch/nodes"
	resolvedUIText  = "The license for this cluster is active."
	defaultTimePath = "metadata.time"
)

// timeSection matches {{#relativeTime}}path{{/relativeTime}} and the
// absoluteTime form. The closing tag is checked against the opening one
// in expandPrefix since RE2 has no backreferences.
var timeSection = regexp.MustCompile(`\{\{#(relativeTime|absoluteTime)\}\}([^{}]*)\{\{/(relativeTime|absoluteTime)\}\}`)

// firingMessage builds the tokenised UI message for a firing record.
func firingMessage(la types.LegacyAlert) *types.Message {
	text, tokens := expandPrefix(la)
	if strings.TrimSpace(text) == "" {
		text = la.Message
	}

	url := la.Metadata.LinkURL
	if url == "" {
		url = defaultLinkURL
	}
	text = strings.TrimSpace(text) + " " + linkStartToken + actionText + linkEndToken
	tokens = append(tokens, types.LinkToken{
		StartToken: linkStartToken,
		EndToken:   linkEndToken,
		URL:        url,
	})
	return &types.Message{Text: text, Tokens: tokens}
}

// resolvedMessage is the static UI message for a resolved record.
func resolvedMessage() *types.Message {
	return &types.Message{Text: resolvedUIText}
}

// expandPrefix replaces the time sections of la.Prefix with their start
// tokens and returns one TimeToken per replaced section, in text order.
func expandPrefix(la types.LegacyAlert) (string, []types.Token) {
	prefix := la.Prefix
	var (
		b      strings.Builder
		tokens []types.Token
		last   int
	)
	for _, m := range timeSection.FindAllStringSubmatchIndex(prefix, -1) {
		open, path, closing := prefix[m[2]:m[3]], prefix[m[4]:m[5]], prefix[m[6]:m[7]]
		if open != closing {
			continue
		}
		b.WriteString(prefix[last:m[0]])
		last = m[1]

		tok := types.TimeToken{Timestamp: resolveTime(la, strings.TrimSpace(path))}
		if open == "relativeTime" {
			tok.StartToken, tok.IsRelative = relativeToken, true
		} else {
			tok.StartToken, tok.IsAbsolute = absoluteToken, true
		}
		b.WriteString(tok.StartToken)
		tokens = append(tokens, tok)
	}
	b.WriteString(prefix[last:])
	return b.String(), tokens
}

// resolveTime looks up a dotted path such as "metadata.time" in the record.
// The raw source document is consulted first so that any numeric field can be
// referenced; unknown paths fall back to metadata.time.
func resolveTime(la types.LegacyAlert, path string) int64 {
	if path == "" {
		path = defaultTimePath
	}
	if len(la.Raw) > 0 {
		if v, err := jsonparser.GetInt(la.Raw, strings.Split(path, ".")...); err == nil {
			return v
		}
	}
	switch path {
	case "metadata.resolved_timestamp", "resolved_timestamp":
		if ts, ok := la.Resolved(); ok {
			return ts
		}
	}
	return la.Metadata.Time
}

// actionLink is the target of the recommended action.
func actionLink(opts Options, cluster types.Cluster) string {
	link := nodesActionPath
	if opts.AbsoluteLinks && opts.KibanaURL != "" {
		link = strings.TrimRight(opts.KibanaURL, "/") + "/app/monitoring#/" + link
	}
	if opts.CCSEnabled && cluster.CCS != "" {
		link += "?_g=(ccs:" + cluster.CCS + ")"
	}
	return link
}

func firingAction(opts Options, cluster types.Cluster, expiredDate string) ActionContext {
	link := fmt.Sprintf("[%s](%s)", actionText, actionLink(opts, cluster))
	head := fmt.Sprintf("License expiration alert is firing for %s. Your license expires in %s.",
		cluster.ClusterName, expiredDate)
	return ActionContext{
		InternalShortMessage: head + " " + actionText,
		InternalFullMessage:  head + " " + link,
		State:                StateFiring,
		ClusterName:          cluster.ClusterName,
		ExpiredDate:          expiredDate,
		Action:               link,
		ActionPlain:          actionText,
	}
}

func resolvedAction(cluster types.Cluster, expiredDate string) ActionContext {
	msg := fmt.Sprintf("License expiration alert is resolved for %s.", cluster.ClusterName)
	return ActionContext{
		InternalShortMessage: msg,
		InternalFullMessage:  msg,
		State:                StateResolved,
		ClusterName:          cluster.ClusterName,
		ExpiredDate:          expiredDate,
	}
}

// DateFormatter returns a formatter rendering unix times with layout in loc.
func DateFormatter(layout string, loc *time.Location) func(time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	return func(t time.Time) string {
		return strings.TrimSpace(t.In(loc).Format(layout))
	}
}
