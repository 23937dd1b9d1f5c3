// Package collector extracts endpoints from rendered pages.
// It provides an HTML parser that pulls URLs out of DOM attributes
// (a/href, script/src, img/src, form/action, link/href) and a network
// recorder that captures request URLs intercepted from the browser's
// network layer.
package collector
