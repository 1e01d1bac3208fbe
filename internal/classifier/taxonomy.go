package classifier

import "github.com/xaenox/gift-bot/internal/models"

// Names returned for subject ids the taxonomy does not know.
const (
	UnknownSubject  = "알 수 없음"
	UnknownCategory = "없음"
)

// Product categories.
const (
	CategoryBeauty  = "뷰티"
	CategoryLeisure = "레저/스포츠"
	CategoryLiving  = "리빙/도서"
	CategoryDigital = "디지털/가전"
	CategoryFashion = "패션"
	CategoryFood    = "식품"
	CategoryBabyPet = "유아동/반려"
)

// The subject head has 20 outputs. Id 4 was dropped from the label set
// when the model was trained and must stay unmapped.
var subjectNames = map[int]string{
	0: "미용", 1: "스포츠/레저", 2: "교육", 3: "가족", 5: "영화/만화",
	6: "교통", 7: "여행", 8: "회사/아르바이트", 9: "건강", 10: "연애/결혼",
	11: "게임", 12: "계절/날씨", 13: "방송/연예", 14: "사회이슈",
	15: "주거와 생활", 16: "반려동물", 17: "군대", 18: "식음료",
}

var subjectCategories = map[int]string{
	0: CategoryBeauty, 1: CategoryLeisure, 2: CategoryLiving, 3: CategoryDigital, 5: CategoryFashion,
	6: CategoryDigital, 7: CategoryLeisure, 8: CategoryLiving, 9: CategoryFood, 10: CategoryFashion,
	11: CategoryDigital, 12: CategoryFood, 13: CategoryFashion, 14: CategoryLiving,
	15: CategoryLiving, 16: CategoryBabyPet, 17: CategoryFood, 18: CategoryFood,
}

// Taxonomy resolves subject ids. It is read-only.
type Taxonomy struct {
	names      map[int]string
	categories map[int]string
}

// DefaultTaxonomy returns the taxonomy the topic model was trained with.
func DefaultTaxonomy() *Taxonomy {
	return &Taxonomy{names: subjectNames, categories: subjectCategories}
}

// Subject looks up id, falling back to the unknown names.
func (t *Taxonomy) Subject(id int) models.Subject {
	s := models.Subject{ID: id, Name: UnknownSubject, Category: UnknownCategory}
	if name, ok := t.names[id]; ok {
		s.Name = name
	}
	if cat, ok := t.categories[id]; ok {
		s.Category = cat
	}
	return s
}

// Categories lists the distinct categories in a fixed order.
func (t *Taxonomy) Categories() []string {
	return []string{
		CategoryBeauty, CategoryLeisure, CategoryLiving, CategoryDigital,
		CategoryFashion, CategoryFood, CategoryBabyPet,
	}
}
