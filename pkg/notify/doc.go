// Package notify turns failures into user-facing notifications.
//
// Classify picks the level and text for an error from its errs category.
// Backend rejections keep the server's message; ones that mention a quantity
// limit ("max quantity", "Only N left") are warnings rather than errors.
package notify
