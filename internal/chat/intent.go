package chat

import (
	"context"
	"strings"

	"cafe/internal/infra/llm"
)

type Intent string

const (
	IntentMenu      Intent = "menu_recommendation"
	IntentStoreInfo Intent = "store_info"
	IntentOrderInfo Intent = "order_info"
	IntentComplaint Intent = "complaint"
	IntentOther     Intent = "other"
)

// 分類名（プロンプトと同じ並び）
var intents = []Intent{IntentMenu, IntentStoreInfo, IntentOrderInfo, IntentComplaint, IntentOther}

// parseIntent は分類結果の文字列から意図を取り出す
func parseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, it := range intents {
		if strings.Contains(s, string(it)) {
			return it, true
		}
	}
	return "", false
}

// classify は短い呼び出しで分類する。失敗したらメニュー推薦として扱う。
func (e *Engine) classify(ctx context.Context, message string) (Intent, error) {
	out, err := e.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: e.prompts.Classifier},
			{Role: "user", Content: message},
		},
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return IntentMenu, err
	}
	if it, ok := parseIntent(out); ok {
		return it, nil
	}
	return IntentMenu, nil
}
