/*
Package builder runs the build lifecycle of the projects in a resolved
manifest. It is the bridge between the static manifest model (defined in the
'manifest' package) and the external tools that produce packages (the 'rpm'
backends, container engines and hook scripts).

A build is invoked once per command line and processes projects strictly one
after the other, in name order. For every project the lifecycle is:

 1. Environment: the project's `env` map is exported into the process
    environment. The export is global and outlives the project.

 2. Pre-script: the project's pre_script hook runs, as a shell command or as
    an embedded script depending on its extension.

 3. Packages: for each requested package kind the project declares, the
    matching build runs. RPM builds assemble rpm.Options from the manifest and
    the command line, run the rpm-level hooks around the backend and refresh
    the local repository metadata. Container images are built with docker or
    podman.

 4. Post-script: the project's post_script hook runs.

 5. Scripts: when every package kind is requested, the project's auxiliary
    scripts run with its labels bound.

Any failure stops the remaining steps of the project and the run. The error
names the project and the phase it failed in. Artifacts copied before the
failure stay in the target directory.
*/
package builder
