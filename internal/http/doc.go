// Package http exposes the post index as a read-only JSON API.
//
// Routes mount under the configured base path (default /api):
//   - Listing: /posts?limit=&offset=
//   - Single post: /posts/{slug}
//   - About page: /about
//   - Site metadata: /site
//
// /healthz is always mounted at the root. Host applications can mount the
// handler returned by PostsAPI.Handler on their own router.
package http
