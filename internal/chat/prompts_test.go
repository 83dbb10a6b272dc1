package chat

import (
	"fmt"
	"strings"
	"testing"

	"cafe/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts()
	require.NoError(t, err)
	assert.Contains(t, p.Classifier, "menu_recommendation")
	assert.NotEmpty(t, p.Apology)
}

func TestParsePrompts_MissingField(t *testing.T) {
	_, err := parsePrompts([]byte("classifier: x\napology: y\nsystems:\n  menu: m\n  info: i\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "systems.general")
}

func TestPrompts_System(t *testing.T) {
	p, err := LoadPrompts()
	require.NoError(t, err)

	menus := []model.Menu{{ID: 5, Name: "카페라떼", Category: "coffee", Price: 5000, Description: "부드러운 우유"}}
	s := p.system(IntentMenu, menus)
	assert.Contains(t, s, "- id:5 카페라떼 5000원 (부드러운 우유)")

	assert.NotContains(t, p.system(IntentStoreInfo, menus), "카페라떼")
	assert.Equal(t, strings.TrimSpace(p.Systems.General), p.system(IntentComplaint, nil))
}

func TestCatalogText_GroupsAndCaps(t *testing.T) {
	var menus []model.Menu
	for i := 1; i <= 20; i++ {
		cat := "coffee"
		if i%2 == 0 {
			cat = "dessert"
		}
		menus = append(menus, model.Menu{ID: int64(i), Name: fmt.Sprint("메뉴", i), Category: cat, Price: 1000})
	}

	text := catalogText(menus)
	assert.Equal(t, 15, strings.Count(text, "- id:"))
	assert.Less(t, strings.Index(text, "[coffee]"), strings.Index(text, "[dessert]"))
	assert.NotContains(t, text, "메뉴16")
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "짧음", shorten(" 짧음 ", 40))
	assert.Equal(t, "가나다…", shorten("가나다라마", 3))
}
