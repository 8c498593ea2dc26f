package catalog

import (
	"testing/fstest"
)

const coreYAML = `namespace: core
items:
  - path: fire
    name: Fire
    description: Hot.
    labels: [element, hot]
    relations:
      opposite: water
      melts: nature:ice
    properties:
      weight: 3
  - path: water
    name: Water
    labels: [element]
    relations:
      opposite: fire
`

const natureHCL = `namespace = "nature"

item "ice" {
  name   = "Ice"
  labels = ["cold", "element"]
  relations = {
    becomes = "core:water"
  }
  properties = {
    hardness = 2.5
    brittle  = true
  }
}

item "trees/oak" {
  name = "Oak"
}
`

// elementsFS is a clean catalog spread over two formats, with a forward
// reference from core to nature.
func elementsFS() fstest.MapFS {
	return fstest.MapFS{
		"core.yaml":  {Data: []byte(coreYAML)},
		"nature.hcl": {Data: []byte(natureHCL)},
		"README.md":  {Data: []byte("not a catalog file")},
	}
}
