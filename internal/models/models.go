package models

import (
	"time"
)

// Engine represents a UGI engine registered with the arena
type Engine struct {
	ID          int       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"column:name;type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"column:description;type:varchar(255)" json:"description"`
	Rating      int       `gorm:"column:rating;not null;default:1500" json:"rating"`
	GamesPlayed int       `gorm:"column:games_played;not null;default:0" json:"games_played"`
	Wins        int       `gorm:"column:wins;not null;default:0" json:"wins"`
	Losses      int       `gorm:"column:losses;not null;default:0" json:"losses"`
	Draws       int       `gorm:"column:draws;not null;default:0" json:"draws"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Engine model
func (Engine) TableName() string {
	return "engines"
}

// Game represents a single completed game between two engines.
// Rows are append-only: the Elo updater inserts them inside the
// match-set transaction and nothing mutates them afterwards.
type Game struct {
	ID                  string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Engine1ID           int       `gorm:"column:engine1_id;not null;index:idx_engine1" json:"engine1_id"`
	Engine2ID           int       `gorm:"column:engine2_id;not null;index:idx_engine2" json:"engine2_id"`
	WinnerID            *int      `gorm:"column:winner_id" json:"winner_id,omitempty"`
	IsDraw              bool      `gorm:"column:is_draw;not null;default:false" json:"is_draw"`
	IsError             bool      `gorm:"column:is_error;not null;default:false" json:"is_error"`
	Engine1RatingBefore int       `gorm:"column:engine1_rating_before;not null" json:"engine1_rating_before"`
	Engine2RatingBefore int       `gorm:"column:engine2_rating_before;not null" json:"engine2_rating_before"`
	Engine1Color        string    `gorm:"column:engine1_color;type:varchar(5);not null" json:"engine1_color"`
	Engine2Color        string    `gorm:"column:engine2_color;type:varchar(5);not null" json:"engine2_color"`
	Moves               string    `gorm:"column:moves;type:text" json:"moves"`
	DurationMs          int64     `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	ErrorText           string    `gorm:"column:error_text;type:text" json:"error_text,omitempty"`
	FinalStatus         string    `gorm:"column:final_status;type:text" json:"final_status,omitempty"`
	StartingPosition    string    `gorm:"column:starting_position;type:varchar(100);index:idx_starting_position" json:"starting_position"`
	MatchSetName        string    `gorm:"column:match_set_name;type:varchar(100);index:idx_match_set_name" json:"match_set_name"`
	PlayedAt            time.Time `gorm:"column:played_at;autoCreateTime;index:idx_played_at" json:"played_at"`
}

// TableName specifies the table name for Game model
func (Game) TableName() string {
	return "games"
}

// Color values for Game.Engine1Color / Game.Engine2Color
const (
	ColorWhite = "white"
	ColorBlack = "black"
)

// Opposite returns the other color.
func Opposite(color string) string {
	if color == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}
