package ai

import "context"

// Block is one unit of tutor output. The generator service decides the block
// types (text, formula, step, hint); this core only relays them.
type Block struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Prompt struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Subject  string `json:"subject"`
	Question string `json:"question"`
}

// Generator produces tutor response blocks. Calls can take multiple seconds;
// callers must bound them with the context deadline and surface expiry as a
// failure event rather than a hung handler.
type Generator interface {
	GenerateBlocks(ctx context.Context, prompt Prompt) ([]Block, error)
}
