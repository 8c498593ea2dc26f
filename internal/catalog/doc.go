// Package catalog loads item definitions from YAML and HCL files into a
// frozen registry and answers queries against it.
//
// One file declares one namespace and the items in it. Items may relate to
// other items by key, in the same file or any other, in any order: a relation
// is requested as a holder before its target exists and is bound when the
// target registers. After every file is read the registry is frozen and any
// relation still unbound is reported as a dangling reference.
//
// A Catalog is immutable. Live keeps the current generation behind an atomic
// pointer and replaces it wholesale on reload.
package catalog
