package postgres

import (
	"encoding/json"
	"time"

	"github.com/amitbasuri/taskbus-go/internal/models"
)

type wireMetaData struct {
	TaskName string         `json:"tn"`
	Trace    models.Trigger `json:"trace"`
}

func decodeMetaData(raw []byte) (models.MetaData, error) {
	var w wireMetaData
	if len(raw) == 0 {
		return models.MetaData{}, nil
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.MetaData{}, err
	}
	return models.MetaData{TaskName: w.TaskName, Trace: w.Trace}, nil
}

type wireConfig struct {
	RetryLimit    int  `json:"r_l"`
	RetryDelay    int  `json:"r_d"`
	RetryBackoff  bool `json:"r_b"`
	KeepInSeconds int  `json:"ki_s"`
}

func decodeConfig(raw []byte) (models.Config, error) {
	var w wireConfig
	if len(raw) == 0 {
		return models.DefaultConfig(), nil
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.Config{}, err
	}
	return models.Config{
		RetryLimit:    w.RetryLimit,
		RetryDelay:    time.Duration(w.RetryDelay) * time.Second,
		RetryBackoff:  w.RetryBackoff,
		KeepInSeconds: w.KeepInSeconds,
	}, nil
}
