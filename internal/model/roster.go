package model

import "time"

// RosterEntry 互评名单中的一条指派：reviewer 在 project 中评 reviewee
type RosterEntry struct {
	Reviewer string `json:"reviewer"`
	Reviewee string `json:"reviewee"`
	Project  string `json:"project"`
}

// Page 问卷中的一页，即一个 (专案, 被评者) 组合
type Page struct {
	Project  string `json:"project"`
	Reviewee string `json:"reviewee"`
}

type ProjectAssignment struct {
	Project   string   `json:"project"`
	Reviewees []string `json:"reviewees"`
}

// ReviewMap reviewer -> project -> reviewees，全部保持来源表顺序，不去重
type ReviewMap struct {
	order []string
	plans map[string][]ProjectAssignment
}

func NewReviewMap() *ReviewMap {
	return &ReviewMap{plans: make(map[string][]ProjectAssignment)}
}

func (m *ReviewMap) Add(e RosterEntry) {
	projects, ok := m.plans[e.Reviewer]
	if !ok {
		m.order = append(m.order, e.Reviewer)
	}
	for i := range projects {
		if projects[i].Project == e.Project {
			projects[i].Reviewees = append(projects[i].Reviewees, e.Reviewee)
			m.plans[e.Reviewer] = projects
			return
		}
	}
	m.plans[e.Reviewer] = append(projects, ProjectAssignment{Project: e.Project, Reviewees: []string{e.Reviewee}})
}

// Reviewers 所有填答者，按名单中首次出现的顺序
func (m *ReviewMap) Reviewers() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *ReviewMap) Has(reviewer string) bool {
	_, ok := m.plans[reviewer]
	return ok
}

func (m *ReviewMap) Projects(reviewer string) []ProjectAssignment {
	return m.plans[reviewer]
}

// Pages 将 reviewer 的指派展开为页面序列：先专案、再被评者
func (m *ReviewMap) Pages(reviewer string) []Page {
	var pages []Page
	for _, p := range m.plans[reviewer] {
		for _, reviewee := range p.Reviewees {
			pages = append(pages, Page{Project: p.Project, Reviewee: reviewee})
		}
	}
	return pages
}

// Roster 一次加载得到的题目与互评名单
type Roster struct {
	Rubric   *Rubric       `json:"rubric"`
	Entries  []RosterEntry `json:"entries"`
	Reviews  *ReviewMap    `json:"-"`
	LoadedAt time.Time     `json:"loadedAt"`
}
