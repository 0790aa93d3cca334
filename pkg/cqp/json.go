package cqp

import (
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// poolConfigFile is the on-disk shape of a pool configuration. Timing values
// are denominated in seconds.
type poolConfigFile struct {
	LocalSize         int    `json:"LocalSize"`
	RemoteSize        int    `json:"RemoteSize"`
	ConnectTimeout    uint32 `json:"ConnectTimeout"`
	HeartbeatInterval uint32 `json:"HeartbeatInterval"`
}

// ConvertJSONFileToConfig opens a file.json and converts it to a PoolConfig.
// Absent or zero fields fall back to the defaults.
func ConvertJSONFileToConfig(fileNamePath string) (PoolConfig, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return PoolConfig{}, err
	}

	fileConfig := &poolConfigFile{}
	var json = jsoniter.ConfigFastest
	if err = json.Unmarshal(byteValue, fileConfig); err != nil {
		return PoolConfig{}, err
	}

	config := DefaultPoolConfig()
	if fileConfig.LocalSize > 0 {
		config.LocalSize = fileConfig.LocalSize
	}
	if fileConfig.RemoteSize > 0 {
		config.RemoteSize = fileConfig.RemoteSize
	}
	if fileConfig.ConnectTimeout > 0 {
		config.ConnectTimeout = time.Duration(fileConfig.ConnectTimeout) * time.Second
	}
	if fileConfig.HeartbeatInterval > 0 {
		config.HeartbeatInterval = time.Duration(fileConfig.HeartbeatInterval) * time.Second
	}

	return config, nil
}
