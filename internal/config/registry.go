package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/LJTian/goalnews/internal/collector"
)

// Registry 固定的来源与关键词表，启动时加载一次后只读
type Registry struct {
	Feeds            []collector.FeedSource
	Authors          []collector.Author
	ClubKeywords     []string
	TransferKeywords []string
	Markers          []string
	ExcitingWords    []string
}

func DefaultRegistry() Registry {
	return Registry{
		Feeds: []collector.FeedSource{
			{Name: "Sky Sports", URL: "https://www.skysports.com/rss/football"},
			{Name: "BBC Sport", URL: "https://feeds.bbci.co.uk/sport/football/rss.xml"},
			{Name: "The Guardian", URL: "https://www.theguardian.com/football/rss"},
			{Name: "BBC Arsenal", URL: "https://feeds.bbci.co.uk/sport/football/teams/arsenal/rss.xml"},
			{Name: "Sky Sports Arsenal", URL: "https://www.skysports.com/arsenal/rss"},
		},
		Authors: []collector.Author{
			{Name: "Fabrizio Romano", Handle: "FabrizioRomano"},
			{Name: "David Ornstein", Handle: "David_Ornstein"},
			{Name: "James Pearce", Handle: "JamesPearceLFC"},
			{Name: "Chris Wheatley", Handle: "ChrisWheatley_"},
			{Name: "Gianluca Di Marzio", Handle: "DiMarzio"},
			{Name: "Charles Watts", Handle: "charles_watts"},
			{Name: "James Benge", Handle: "jamesbenge"},
		},
		ClubKeywords: []string{
			"arsenal", "gunners", "emirates", "arteta", "saka", "odegaard",
			"martinelli", "jesus", "saliba", "white", "ramsdale", "阿森纳",
		},
		TransferKeywords: []string{
			"transfer", "sign", "signing", "deal", "move", "join", "leave",
			"departure", "arrival", "agreement", "contract", "loan", "permanent",
			"here we go", "medical", "completed", "announced", "confirmed",
		},
		Markers:       []string{"🚨", "💥", "✅"},
		ExcitingWords: []string{"🚨", "重磅", "官宣"},
	}
}

type registryFile struct {
	Feeds []struct {
		Name string `mapstructure:"name"`
		URL  string `mapstructure:"url"`
	} `mapstructure:"feeds"`
	Authors []struct {
		Name   string `mapstructure:"name"`
		Handle string `mapstructure:"handle"`
	} `mapstructure:"authors"`
	ClubKeywords     []string `mapstructure:"club_keywords"`
	TransferKeywords []string `mapstructure:"transfer_keywords"`
	Markers          []string `mapstructure:"markers"`
	ExcitingWords    []string `mapstructure:"exciting_words"`
}

// LoadRegistry path 为空时返回默认表；文件中缺省的部分沿用默认值
func LoadRegistry(path string) (Registry, error) {
	reg := DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return reg, fmt.Errorf("read sources file %s: %w", path, err)
	}
	var f registryFile
	if err := v.Unmarshal(&f); err != nil {
		return reg, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	if len(f.Feeds) > 0 {
		reg.Feeds = reg.Feeds[:0:0]
		for _, fd := range f.Feeds {
			if fd.URL == "" {
				continue
			}
			name := fd.Name
			if name == "" {
				name = fd.URL
			}
			reg.Feeds = append(reg.Feeds, collector.FeedSource{Name: name, URL: fd.URL})
		}
	}
	if len(f.Authors) > 0 {
		reg.Authors = reg.Authors[:0:0]
		for _, a := range f.Authors {
			if a.Handle == "" {
				continue
			}
			reg.Authors = append(reg.Authors, collector.Author{Name: a.Name, Handle: a.Handle})
		}
	}
	if len(f.ClubKeywords) > 0 {
		reg.ClubKeywords = f.ClubKeywords
	}
	if len(f.TransferKeywords) > 0 {
		reg.TransferKeywords = f.TransferKeywords
	}
	if len(f.Markers) > 0 {
		reg.Markers = f.Markers
	}
	if len(f.ExcitingWords) > 0 {
		reg.ExcitingWords = f.ExcitingWords
	}
	return reg, nil
}
