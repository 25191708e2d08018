// Package query provides a lazily evaluated, typed view over a container.
//
// A Query describes what to read; nothing touches storage until a terminal
// method (ToList, First, Count, Each, All) runs. Every builder method returns
// a new Query, so a base query can be shared and refined freely:
//
//	active := query.FromContainer[User](c).Where(func(u User) bool { return u.Active })
//	newest, err := active.OrderBy(byCreatedDesc).Take(10).ToList(ctx)
//
// Without OrderBy, items stream in container key order and Take stops the
// scan early. OrderBy buffers every matching item before sorting.
package query
