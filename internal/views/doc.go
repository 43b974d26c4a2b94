// Package views holds the presentation state shared by the terminal and web frontends.
//
// [State] is the three-way result a view renders: pending, error or success. Error text
// always comes from [services.ErrorMessage]. [Banners] shows transient messages that expire
// after one configured timeout. [Mutate] runs a write and invalidates the cache keys it affects.
package views
