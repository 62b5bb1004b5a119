package web3

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chain.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a single chain endpoint and the counter
// contract deployed on it.
type ChainDefinition struct {
	Type            string `yaml:"type"`
	RPCURL          string `yaml:"rpc_url"`
	ChainID         uint64 `yaml:"chain_id"`
	ContractAddress string `yaml:"contract_address"`
	Description     string `yaml:"description"`
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}

// Select returns the definition named by name. With an empty name it falls
// back to the only chain in the file, or the first one in lexical order.
// Only one chain is ever active per process.
func (d ChainDefinitions) Select(name string) (string, ChainDefinition, error) {
	if len(d.Chains) == 0 {
		return "", ChainDefinition{}, fmt.Errorf("链配置为空")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		names := make([]string, 0, len(d.Chains))
		for n := range d.Chains {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}
	def, ok := d.Chains[name]
	if !ok {
		return "", ChainDefinition{}, fmt.Errorf("链 %s 未在配置中找到", name)
	}
	chainType := strings.ToLower(strings.TrimSpace(def.Type))
	if chainType != "" && chainType != "evm" {
		return "", ChainDefinition{}, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, def.Type)
	}
	if def.ContractAddress != "" && !common.IsHexAddress(def.ContractAddress) {
		return "", ChainDefinition{}, fmt.Errorf("链 %s 的合约地址无效: %s", name, def.ContractAddress)
	}
	return name, def, nil
}
