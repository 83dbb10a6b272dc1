package chat

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"cafe/internal/domain/model"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts は埋め込みの prompts.yaml
type Prompts struct {
	Classifier string `yaml:"classifier"`
	Apology    string `yaml:"apology"`
	Systems    struct {
		Menu    string `yaml:"menu"`
		Info    string `yaml:"info"`
		General string `yaml:"general"`
	} `yaml:"systems"`
}

// LoadPrompts は埋め込みのYAMLを読む。必須の項目が空ならエラー。
func LoadPrompts() (Prompts, error) {
	return parsePrompts(promptsYAML)
}

func parsePrompts(b []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}
	for name, v := range map[string]string{
		"classifier":      p.Classifier,
		"apology":         p.Apology,
		"systems.menu":    p.Systems.Menu,
		"systems.info":    p.Systems.Info,
		"systems.general": p.Systems.General,
	} {
		if strings.TrimSpace(v) == "" {
			return Prompts{}, fmt.Errorf("prompt %s is empty", name)
		}
	}
	return p, nil
}

const (
	maxCatalogItems  = 15
	maxDescRunes     = 40
	uncategorizedKey = "기타"
)

// system は意図に合わせたシステムプロンプト。メニューの時はカタログを付ける。
func (p Prompts) system(intent Intent, menus []model.Menu) string {
	switch intent {
	case IntentMenu:
		return strings.TrimSpace(p.Systems.Menu) + "\n\n" + catalogText(menus)
	case IntentStoreInfo, IntentOrderInfo:
		return strings.TrimSpace(p.Systems.Info)
	default:
		return strings.TrimSpace(p.Systems.General)
	}
}

// catalogText はカテゴリごとに並べたメニュー一覧（最大15件）
func catalogText(menus []model.Menu) string {
	if len(menus) > maxCatalogItems {
		menus = menus[:maxCatalogItems]
	}

	var order []string
	byCategory := map[string][]model.Menu{}
	for _, m := range menus {
		c := strings.TrimSpace(m.Category)
		if c == "" {
			c = uncategorizedKey
		}
		if _, ok := byCategory[c]; !ok {
			order = append(order, c)
		}
		byCategory[c] = append(byCategory[c], m)
	}

	var b strings.Builder
	b.WriteString("메뉴 목록:\n")
	for _, c := range order {
		fmt.Fprintf(&b, "[%s]\n", c)
		for _, m := range byCategory[c] {
			fmt.Fprintf(&b, "- id:%d %s %d원", m.ID, m.Name, m.Price)
			if d := shorten(m.Description, maxDescRunes); d != "" {
				fmt.Fprintf(&b, " (%s)", d)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
