package chat

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"cafe/internal/domain/model"
)

const maxRecommended = 3

var (
	reCodeFence  = regexp.MustCompile("(?m)^\\s*```[^\\n]*$")
	reImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reInlineCode = regexp.MustCompile("`([^`]*)`")
	reHeader     = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	reBoldStar   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnder  = regexp.MustCompile(`__(.+?)__`)
	reItalStar   = regexp.MustCompile(`\*([^*\n]+)\*`)
	reItalUnder  = regexp.MustCompile(`(^|[\s(])_([^_\n]+)_`)
	reListMarker = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`)
	reQuote      = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	reHTMLTag    = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	reSpaces     = regexp.MustCompile(`[ \t]+`)
	reBlankLines = regexp.MustCompile(`\n{2,}`)
)

// StripMarkdown は見出し・強調・リスト記号・リンク/画像・コード・HTMLタグを外す。
// 周りの文字はそのまま残す。
func StripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reCodeFence.ReplaceAllString(s, "")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reInlineCode.ReplaceAllString(s, "$1")
	s = reHTMLTag.ReplaceAllString(s, "")
	s = reHeader.ReplaceAllString(s, "")
	s = reListMarker.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reBoldStar.ReplaceAllString(s, "$1")
	s = reBoldUnder.ReplaceAllString(s, "$1")
	s = reItalStar.ReplaceAllString(s, "$1")
	s = reItalUnder.ReplaceAllString(s, "$1$2")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// SplitSentences は "." で区切る。どの文も "." 1つで終わる。
func SplitSentences(s string) []string {
	parts := strings.Split(s, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		out = append(out, p+".")
	}
	return out
}

type mention struct {
	id    int64
	count int
	first int
}

// RecommendIDs は本文に出てきたメニュー名（大文字小文字は区別しない）からIDを選ぶ。
// 長い名前から数えて、数えた部分は伏せる（"라떼" が "카페라떼" の中で数えられないように）。
// 出現回数の多い順、同数なら先に出た順で最大3件。
func RecommendIDs(text string, menus []model.Menu) []int64 {
	ids := []int64{}
	work := []byte(strings.ToLower(text))

	sorted := make([]model.Menu, 0, len(menus))
	for _, m := range menus {
		if strings.TrimSpace(m.Name) != "" {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i].Name) > utf8.RuneCountInString(sorted[j].Name)
	})

	var found []mention
	for _, m := range sorted {
		name := []byte(strings.ToLower(strings.TrimSpace(m.Name)))
		mt := mention{id: m.ID, first: -1}
		for off := 0; ; {
			i := indexFrom(work, name, off)
			if i < 0 {
				break
			}
			if mt.first < 0 {
				mt.first = i
			}
			mt.count++
			for k := i; k < i+len(name); k++ {
				work[k] = 0
			}
			off = i + len(name)
		}
		if mt.count > 0 {
			found = append(found, mt)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].count != found[j].count {
			return found[i].count > found[j].count
		}
		return found[i].first < found[j].first
	})
	for _, f := range found {
		if len(ids) == maxRecommended {
			break
		}
		ids = append(ids, f.id)
	}
	return ids
}

func indexFrom(b, sep []byte, off int) int {
	if off >= len(b) {
		return -1
	}
	i := strings.Index(string(b[off:]), string(sep))
	if i < 0 {
		return -1
	}
	return off + i
}
