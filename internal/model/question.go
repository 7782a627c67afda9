package model

// Question 评分题目（子項目）
type Question struct {
	Category    string `json:"category"`
	Subitem     string `json:"subitem"`
	Description string `json:"description"`
}

// Category 大項目及其下的题目，题目顺序与来源表一致
type Category struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Rubric 按大項目分组的全部题目
type Rubric struct {
	Categories []Category `json:"categories"`
}

// Add 将题目追加到其大項目下；大項目按首次出现的顺序排列
func (r *Rubric) Add(q Question) {
	for i := range r.Categories {
		if r.Categories[i].Name == q.Category {
			r.Categories[i].Questions = append(r.Categories[i].Questions, q)
			return
		}
	}
	r.Categories = append(r.Categories, Category{Name: q.Category, Questions: []Question{q}})
}

// Total 题目总数
func (r *Rubric) Total() int {
	n := 0
	for _, c := range r.Categories {
		n += len(c.Questions)
	}
	return n
}

// All 按展示顺序返回全部题目
func (r *Rubric) All() []Question {
	out := make([]Question, 0, r.Total())
	for _, c := range r.Categories {
		out = append(out, c.Questions...)
	}
	return out
}

// Find 按子項目查找题目，子項目在题目表内唯一
func (r *Rubric) Find(subitem string) (Question, bool) {
	for _, c := range r.Categories {
		for _, q := range c.Questions {
			if q.Subitem == subitem {
				return q, true
			}
		}
	}
	return Question{}, false
}
