// Package dag orders projects by their declared dependencies. A project is
// built only after every project it depends on; projects that are not
// ordered relative to each other keep name order.
package dag
