package model

import (
	"encoding/json"
	"time"
)

// AnalysisSnapshot 终态分析的权威快照归档
type AnalysisSnapshot struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	AnalysisID   string    `gorm:"size:100;not null;uniqueIndex" json:"analysis_id"`
	RepoName     string    `gorm:"size:200" json:"repo_name"`
	RepoOwner    string    `gorm:"size:100" json:"repo_owner"`
	Status       string    `gorm:"size:20;index" json:"status"`
	QualityScore *int      `json:"quality_score,omitempty"`
	Grade        string    `gorm:"size:10" json:"grade,omitempty"`
	Payload      string    `gorm:"type:text;not null" json:"-"` // Analysis 的 JSON
	CapturedAt   time.Time `gorm:"index" json:"captured_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (AnalysisSnapshot) TableName() string {
	return "analysis_snapshots"
}

// Secret 本地保存的令牌（已加密）
type Secret struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:secret_name;size:100;not null;uniqueIndex"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Secret) TableName() string {
	return "secrets"
}

// NewSnapshot 把权威记录序列化成归档行
func NewSnapshot(a *Analysis, capturedAt time.Time) (*AnalysisSnapshot, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	s := &AnalysisSnapshot{
		AnalysisID: a.ID,
		RepoName:   a.RepoName,
		RepoOwner:  a.RepoOwner,
		Status:     string(a.Status),
		Payload:    string(payload),
		CapturedAt: capturedAt,
	}
	if a.CodeQuality != nil {
		score := a.CodeQuality.Score
		s.QualityScore = &score
		s.Grade = a.CodeQuality.Grade
	}
	return s, nil
}

// Decode 还原归档的记录
func (s *AnalysisSnapshot) Decode() (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(s.Payload), &a); err != nil {
		return Analysis{}, err
	}
	a.ID = s.AnalysisID
	a.Provisional = false
	return a, nil
}
