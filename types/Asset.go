package types

import (
	"time"
)

type AssetType string

const (
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeStock  AssetType = "STOCK"
)

type Asset struct {
	Id         int       `json:"id"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Type       AssetType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
