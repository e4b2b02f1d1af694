package models

import "gopkg.in/yaml.v3"

type yamlNode = yaml.Node

type entry struct {
	key   string
	value *yamlNode
}

// mapping keeps insertion order, which a Go map would lose.
func mapping(entries ...entry) *yamlNode {
	n := &yamlNode{Kind: yaml.MappingNode}
	for _, e := range entries {
		n.Content = append(n.Content, &yamlNode{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.key}, e.value)
	}
	return n
}

func sequence(items ...*yamlNode) *yamlNode {
	return &yamlNode{Kind: yaml.SequenceNode, Content: items}
}

func scalar(v string) *yamlNode {
	return &yamlNode{Kind: yaml.ScalarNode, Value: v}
}

func render(n *yamlNode) string {
	out, err := yaml.Marshal(n)
	if err != nil {
		return err.Error()
	}
	return string(out)
}
