package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/usage"
)

// numberText принимает в JSON и строку, и число: форма может прислать "3" или 3.
type numberText string

func (n *numberText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberText(s)
		return nil
	}
	*n = numberText(b)
	return nil
}

type userDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	IsMember    bool   `json:"is_member"`
}

func toUserDTO(u users.User) userDTO {
	return userDTO{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, IsMember: u.IsMember}
}

type materialDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	Stock             string `json:"stock"`
	LowStockThreshold string `json:"low_stock_threshold"`
	MemberPrice       string `json:"member_price"`
	DropInPrice       string `json:"drop_in_price"`
	Low               bool   `json:"low"`
}

func toMaterialDTOs(list []materials.Material) []materialDTO {
	out := make([]materialDTO, 0, len(list))
	for _, m := range list {
		out = append(out, materialDTO{
			ID:                m.ID,
			Name:              m.Name,
			Unit:              m.Unit,
			Stock:             m.Stock.String(),
			LowStockThreshold: m.LowStockThreshold.String(),
			MemberPrice:       m.MemberPrice.StringFixed(2),
			DropInPrice:       m.DropInPrice.StringFixed(2),
			Low:               m.IsLow(),
		})
	}
	return out
}

type machineDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toMachineDTOs(list []machines.Machine) []machineDTO {
	out := make([]machineDTO, 0, len(list))
	for _, m := range list {
		out = append(out, machineDTO{ID: m.ID, Name: m.Name})
	}
	return out
}

type stageRequest struct {
	MaterialID      string     `json:"material_id"`
	MachineID       string     `json:"machine_id"`
	Amount          numberText `json:"amount"`
	Duration        numberText `json:"duration"`
	UsesOwnMaterial bool       `json:"uses_own_material"`
}

func (r stageRequest) toUsage() usage.StageRequest {
	return usage.StageRequest{
		MaterialID:      r.MaterialID,
		MachineID:       r.MachineID,
		Amount:          string(r.Amount),
		Duration:        string(r.Duration),
		UsesOwnMaterial: r.UsesOwnMaterial,
	}
}

type pendingDTO struct {
	ID                   string    `json:"id"`
	MaterialID           string    `json:"material_id"`
	MaterialName         string    `json:"material_name"`
	MachineID            string    `json:"machine_id"`
	Amount               string    `json:"amount"`
	Duration             string    `json:"duration"`
	UsesOwnMaterial      bool      `json:"uses_own_material"`
	Price                string    `json:"price"`
	StagedAt             time.Time `json:"staged_at"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
	PaymentURL           string    `json:"payment_url,omitempty"`
}

func toPendingDTO(p usage.Pending) pendingDTO {
	return pendingDTO{
		ID:                   p.ID,
		MaterialID:           p.MaterialID,
		MaterialName:         p.MaterialName,
		MachineID:            p.MachineID,
		Amount:               p.Amount.String(),
		Duration:             p.Duration.String(),
		UsesOwnMaterial:      p.UsesOwnMaterial,
		Price:                p.Price.StringFixed(2),
		StagedAt:             p.StagedAt,
		RequiresConfirmation: usage.RequiresConfirmation(p),
	}
}

type entryDTO struct {
	ID              string    `json:"id"`
	UserName        string    `json:"user_name"`
	MaterialID      string    `json:"material_id"`
	MaterialName    string    `json:"material_name"`
	MachineID       string    `json:"machine_id"`
	Amount          string    `json:"amount"`
	Price           string    `json:"price"`
	Duration        string    `json:"duration"`
	UsesOwnMaterial bool      `json:"uses_own_material"`
	Timestamp       time.Time `json:"timestamp"`
}

func toEntryDTO(e usagelog.Entry) entryDTO {
	return entryDTO{
		ID:              e.ID,
		UserName:        e.UserName,
		MaterialID:      e.MaterialID,
		MaterialName:    e.MaterialName,
		MachineID:       e.MachineID,
		Amount:          e.Amount.String(),
		Price:           e.Price.StringFixed(2),
		Duration:        e.Duration.String(),
		UsesOwnMaterial: e.UsesOwnMaterial,
		Timestamp:       e.Timestamp,
	}
}
