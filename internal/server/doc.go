// Package server provides HTTP routing, middleware and the local web frontend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses a chi mux internally for method and pattern routing.
//
// # Web Frontend
//
// [Frontend] renders every GET through [app.Provider.Navigate], so the web pages go through the
// same route guard, loaders and query cache as the terminal UI. A navigation that ends in a
// redirect becomes a 303; a loader failure renders the page's error state. Form posts call the
// provider's mutations and redirect back on success, or re-render the form with field errors.
//
// Templates are embedded from templates/ and share layout.html. The server only listens on the
// configured local address and rejects cross-origin form posts.
package server
