// Package kernel defines the perturbation kernels plugged into the section
// engine and the volume augments. A Constructor owns the configured
// hyperparameters; each call to New draws one Kernel instance with its own
// random hyperparameters, which is then applied in place to every region it
// governs. Kernels are looked up by name through a small registry so that
// manifests can reference them.
package kernel
